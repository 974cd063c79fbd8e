package filehandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/goblimey/go-adcp/pd0/framer"
)

// DefaultBufferSize is the size of the reads.
const DefaultBufferSize = 4096

// Handler reads PD0 data from a source such as a file or a serial line,
// frames it and sends the outcomes on a channel.  The source may still be
// being written.
type Handler struct {
	Framer             *framer.Framer        // Frames and decodes the data ...
	OutcomeChan        chan<- framer.Outcome // ... and issues the outcomes on this channel.
	RetryIntervalOnEOF time.Duration         // The time to wait between retries on EOF.
	EOFTimeout         time.Duration         // Give up retrying after this time has elapsed.

	// Capture, if not nil, gets a copy of the data read.
	Capture io.Writer

	// BufferSize is the size of each read.
	BufferSize int

	Logger *slog.Logger
}

// New creates a handler.
func New(f *framer.Framer, outcomeChan chan<- framer.Outcome, retryIntervalOnEOF, eofTimeout time.Duration) *Handler {

	handler := Handler{
		Framer:             f,
		OutcomeChan:        outcomeChan,
		RetryIntervalOnEOF: retryIntervalOnEOF,
		EOFTimeout:         eofTimeout,
		BufferSize:         DefaultBufferSize,
		Logger:             slog.New(slog.DiscardHandler),
	}
	return &handler
}

// Handle reads from the reader, frames the data and sends the outcomes to
// the outcome channel.  When it stops it sends the outcomes for whatever
// data is left and closes the channel.  It returns the error that stopped
// it, typically io.EOF.
func (handler *Handler) Handle(ctx context.Context, reader io.Reader) error {

	// An EOF on a read is not necessarily fatal.  It can just mean that there
	// is no data to read just now, but there may be some in the future.  If
	// EOFTimeout is zero, we return immediately on EOF.  If it's set, we retry
	// reads for that duration and then return.  On any other read error we
	// stop immediately.
	//
	// If the reader is connected to a file that's not being written, the caller
	// should supply a zero timeout.  Handle then processes the file and stops.
	//
	// If the reader is connected to a serial line fed by an ADCP, ensembles
	// should come in indefinitely, a burst every few seconds.  A read on a
	// serial line that times out returns no data and no error, which is
	// treated the same as EOF.  If the timeout is set to longer than the
	// ensemble interval then it only expires if the host loses its
	// connection to the instrument.  The caller should then reopen the
	// connection, create a new handler and continue.

	defer close(handler.OutcomeChan)

	stream := handler.Framer.NewStream()

	// timeOfFirstEOF is set when the read has returned EOF one or more times
	// in a row.  It's the time that we saw the first of a stream of EOFs.
	// If the last read was successful, the value is left as nil.
	var timeOfFirstEOF *time.Time

	bufferSize := handler.BufferSize
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	buf := make([]byte, bufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := reader.Read(buf)

		if n > 0 {
			// We have read some data.  Reset the timeout mechanism and frame
			// the data.
			timeOfFirstEOF = nil
			if handler.Capture != nil {
				if _, errWrite := handler.Capture.Write(buf[:n]); errWrite != nil {
					handler.Logger.Error("cannot write capture file", "error", errWrite)
				}
			}
			stream.Feed(buf[:n])
			for {
				outcome, ok := stream.Next()
				if !ok {
					break
				}
				if errSend := handler.send(ctx, outcome); errSend != nil {
					return errSend
				}
			}
		}

		if err != nil && !errors.Is(err, io.EOF) {
			// Some other kind of file handling error.
			handler.flush(ctx, stream)
			return err
		}

		if err == nil && n > 0 {
			continue
		}

		// EOF, or a serial read that timed out.
		if handler.EOFTimeout == 0 {
			// No timeout so don't retry.
			handler.flush(ctx, stream)
			return io.EOF
		}

		// EOF may really mean end of file or just that there is currently
		// no data to read.  Retry until the timeout elapses and then return.
		if timeOfFirstEOF == nil {
			t := time.Now()
			timeOfFirstEOF = &t
		} else if time.Since(*timeOfFirstEOF) > handler.EOFTimeout {
			// The timeout has elapsed.  Give up.
			handler.flush(ctx, stream)
			return io.EOF
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(handler.RetryIntervalOnEOF):
		}
	}
}

// send sends an outcome, giving up if the context is cancelled.
func (handler *Handler) send(ctx context.Context, outcome framer.Outcome) error {
	select {
	case handler.OutcomeChan <- outcome:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush sends the outcomes for the data left in the stream.
func (handler *Handler) flush(ctx context.Context, stream *framer.Stream) {
	if stream.Buffered() > 0 {
		handler.Logger.Debug("end of input", "buffered", stream.Buffered())
	}
	for _, outcome := range stream.Flush() {
		if handler.send(ctx, outcome) != nil {
			return
		}
	}
}
