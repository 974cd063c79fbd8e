// This is the core of the PD0 applications.  It reads PD0 data from a
// source, typically a file or a serial line connected to an ADCP, frames
// and decodes the ensembles and sends the outcomes to a set of channels.
package appcore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/goblimey/go-adcp/config"
	fileHandler "github.com/goblimey/go-adcp/file_handler"
	"github.com/goblimey/go-adcp/input"
	"github.com/goblimey/go-adcp/pd0/framer"
)

// ConnectFunc connects to the data source.  It's called again each time
// the source dries up.
type ConnectFunc func(ctx context.Context) (io.ReadCloser, error)

type AppCore struct {
	Conf     *config.Config
	Framer   *framer.Framer
	Channels []chan framer.Outcome
	Logger   *slog.Logger

	// Capture, if not nil, gets a copy of all the data read.
	Capture io.Writer
}

// New creates an AppCore with a framer set up from the config.
func New(conf *config.Config, channels []chan framer.Outcome, logger *slog.Logger) *AppCore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	f := framer.New(
		framer.WithFamily(conf.FamilyValue()),
		framer.WithLookAhead(conf.LookAheadEnabled()),
		framer.WithLogger(logger),
		framer.WithLogLevel(conf.DisplayLevel()),
	)
	appCore := AppCore{Conf: conf, Framer: f, Channels: channels, Logger: logger}
	return &appCore
}

// HandleOutcomes repeatedly connects to the data source, frames the data and
// sends the outcomes to the channels.  It runs until the context is
// cancelled.
//
// It's assumed that the source is a device that is sending data on a serial
// connection and will do so indefinitely.  If the connection is lost, the
// connect function is called again until it succeeds, sleeping between
// attempts.
func (appCore *AppCore) HandleOutcomes(ctx context.Context, connect ConnectFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		source, err := connect(ctx)
		if err != nil {
			appCore.Logger.Debug("cannot connect to the data source", "error", err)
			if errSleep := sleep(ctx, appCore.Conf.Serial.SleepTimeAfterFailedOpen()); errSleep != nil {
				return errSleep
			}
			continue
		}

		errHandle := appCore.HandleOutcomesUntilEOF(ctx, source)
		source.Close()
		if errHandle != nil && !errors.Is(errHandle, io.EOF) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			appCore.Logger.Error("read failed", "error", errHandle)
		}

		// The supply has dried up.  Wait for a short time and reconnect.
		if errSleep := sleep(ctx, appCore.Conf.Serial.SleepTimeOnEOF()); errSleep != nil {
			return errSleep
		}
	}
}

// HandleOutcomesUntilEOF takes the given reader, creates a file handler and
// runs it.
//
// Whenever it receives an outcome from the handler, it sends a copy to each
// of the AppCore's channels.  It's assumed that something is listening to
// each channel and doing something with the outcomes, for example writing
// them to a log file.  Nil channels are skipped.
func (appCore *AppCore) HandleOutcomesUntilEOF(ctx context.Context, reader io.Reader) error {

	outcomeChan := make(chan framer.Outcome)

	fh := fileHandler.New(appCore.Framer, outcomeChan,
		appCore.Conf.Serial.SleepTimeOnEOF(), appCore.Conf.Serial.ReadTimeout())
	fh.Capture = appCore.Capture
	fh.Logger = appCore.Logger

	// The file handler closes the outcome channel when it finishes, which
	// is how we know that it's finished.
	errChan := make(chan error, 1)
	go func() { errChan <- fh.Handle(ctx, reader) }()

	for outcome := range outcomeChan {
		appCore.fanOut(outcome)
	}

	return <-errChan
}

// HandleFile decodes the named file and sends the outcomes to the
// channels.  The file is read completely first, so a file that's still
// being written should be handled with HandleOutcomesUntilEOF instead.
func (appCore *AppCore) HandleFile(ctx context.Context, name string) error {
	buf, err := input.ReadFile(name, appCore.Conf.InputFormat, appCore.Conf.HeaderLines)
	if err != nil {
		return err
	}

	if appCore.Conf.Workers > 1 {
		outcomes, err := appCore.Framer.DecodeParallel(ctx, buf, appCore.Conf.Workers)
		if err != nil {
			return err
		}
		for _, outcome := range outcomes {
			appCore.fanOut(outcome)
		}
		return nil
	}

	outcomeChan := make(chan framer.Outcome)
	errChan := make(chan error, 1)
	go func() { errChan <- appCore.Framer.HandleEnsembles(ctx, buf, outcomeChan) }()

	for outcome := range outcomeChan {
		appCore.fanOut(outcome)
	}

	return <-errChan
}

func (appCore *AppCore) fanOut(outcome framer.Outcome) {
	for i := range appCore.Channels {
		if appCore.Channels[i] != nil {
			appCore.Channels[i] <- outcome
		}
	}
}

// sleep waits for the duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
