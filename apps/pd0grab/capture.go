package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// CaptureWriter writes the raw data from the instrument to a series of
// files.  The file name is made from a strftime pattern and the time of
// each write.  When the name changes, for example at the start of a new
// hour, the current file is closed and the new one opened.  Existing files
// are appended to.
type CaptureWriter struct {
	directory string
	pattern   *strftime.Strftime
	logger    *slog.Logger

	// now supplies the time.  Tests replace it.
	now func() time.Time

	mutex    sync.Mutex
	file     *os.File
	fileName string
}

// NewCaptureWriter creates a CaptureWriter.  An empty directory means the
// current directory.
func NewCaptureWriter(directory, pattern string, logger *slog.Logger) (*CaptureWriter, error) {
	p, err := strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("capture file pattern %q - %w", pattern, err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cw := CaptureWriter{
		directory: directory,
		pattern:   p,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	return &cw, nil
}

// Write writes the data to the current capture file.
func (cw *CaptureWriter) Write(data []byte) (int, error) {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	fileName := filepath.Join(cw.directory, cw.pattern.FormatString(cw.now()))
	if fileName != cw.fileName {
		if err := cw.closeFile(); err != nil {
			cw.logger.Error("cannot close capture file", "file", cw.fileName, "error", err)
		}
		file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return 0, err
		}
		cw.logger.Info("capture file", "file", fileName)
		cw.file = file
		cw.fileName = fileName
	}

	return cw.file.Write(data)
}

// FileName returns the name of the current capture file, empty if nothing
// has been written.
func (cw *CaptureWriter) FileName() string {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	return cw.fileName
}

// Close closes the current capture file.
func (cw *CaptureWriter) Close() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()
	return cw.closeFile()
}

func (cw *CaptureWriter) closeFile() error {
	if cw.file == nil {
		return nil
	}
	err := cw.file.Close()
	cw.file = nil
	cw.fileName = ""
	return err
}
