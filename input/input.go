// The input package reads PD0 data from files.  The files may be PD0 or
// PD15, may start with lines of text, and may be compressed with gzip or
// zstd.
package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/goblimey/go-adcp/config"
	"github.com/goblimey/go-adcp/pd15"
)

// ErrUnknownFormat is returned for an input format other than pd0 or pd15.
var ErrUnknownFormat = errors.New("unknown input format")

// Stdin is the file name that means the standard input.
const Stdin = "-"

// Open opens the named file for reading, decompressing it if the name ends
// in .gz, .zst or .zstd.  The name "-" means the standard input, which is not
// decompressed.
func Open(name string) (io.ReadCloser, error) {
	if name == Stdin {
		return io.NopCloser(os.Stdin), nil
	}

	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	kind, _ := compression(name)
	switch kind {
	case ".gz":
		gz, err := gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return &readCloser{Reader: gz, closers: []io.Closer{gz, file}}, nil

	case ".zst":
		zr, err := zstd.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		rc := zr.IOReadCloser()
		return &readCloser{Reader: rc, closers: []io.Closer{rc, file}}, nil

	default:
		return file, nil
	}
}

// FormatFromName returns the format given by the file name: pd15 if the
// name ends in .pd15, otherwise pd0.  A compression suffix is ignored.
func FormatFromName(name string) string {
	_, n := compression(name)
	name = name[:len(name)-n]
	if strings.EqualFold(filepath.Ext(name), ".pd15") {
		return config.FormatPD15
	}
	return config.FormatPD0
}

// ReadPD0 reads the input and returns the PD0 data, after skipping
// headerLines lines of text.  PD15 input is converted.
func ReadPD0(r io.Reader, format string, headerLines int) ([]byte, error) {
	switch format {
	case config.FormatPD15:
		line, err := pd15.ReadLine(r, headerLines)
		if err != nil {
			return nil, err
		}
		return pd15.ToPD0(line), nil

	case config.FormatPD0:
		reader := bufio.NewReader(r)
		for i := 0; i < headerLines; i++ {
			if _, err := reader.ReadBytes('\n'); err != nil {
				if err == io.EOF {
					// All header, no data.
					return []byte{}, nil
				}
				return nil, err
			}
		}
		return io.ReadAll(reader)

	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
}

// ReadFile reads the PD0 data from the named file.  If format is empty it's
// taken from the file name.
func ReadFile(name, format string, headerLines int) ([]byte, error) {
	if len(format) == 0 {
		format = FormatFromName(name)
	}

	r, err := Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return ReadPD0(r, format, headerLines)
}

// compression returns the kind of compression given by the name, ".gz",
// ".zst" or "", and the length of the suffix.
func compression(name string) (string, int) {
	ext := filepath.Ext(name)
	switch strings.ToLower(ext) {
	case ".gz":
		return ".gz", len(ext)
	case ".zst", ".zstd":
		return ".zst", len(ext)
	default:
		return "", 0
	}
}

// readCloser closes a decompressor and the file under it.
type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r *readCloser) Close() error {
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
