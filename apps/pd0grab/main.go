// pd0grab reads PD0 data from an ADCP on a serial line, writes it to
// capture files and logs each ensemble as it arrives.
//
// The config file gives the possible device names of the serial port and
// the line settings.  The program loops until it's stopped: it finds the
// first of the named devices that exists, opens it and reads from it
// until the data dries up, then does all that again.  This copes with a
// serial USB device that drops out and comes back with a different name.
//
// The raw data goes to files named by a strftime pattern, so that
// "adcp.%Y-%m-%d-%H.pd0" starts a new file each hour.  The data is also
// framed and decoded on the fly.  Good ensembles are logged at debug level,
// damaged ones at info level, and the counts can be served to Prometheus.
//
// Usage:
//
//	pd0grab -c config.json [flags]
//
// An example config:
//
//	{
//	    "family": "workhorse",
//	    "serial": {
//	        "speed": 115200,
//	        "read_timeout_milliseconds": 5000,
//	        "sleep_time_after_failed_open_milliseconds": 1000,
//	        "sleep_time_on_EOF_millis": 100,
//	        "filenames": ["/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2"]
//	    },
//	    "capture": {
//	        "directory": "/var/adcp",
//	        "filename_pattern": "adcp.%Y-%m-%d-%H.pd0"
//	    },
//	    "metrics_address": ":9100"
//	}
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.bug.st/serial"

	"github.com/goblimey/go-adcp/apps/appcore"
	"github.com/goblimey/go-adcp/config"
	"github.com/goblimey/go-adcp/metrics"
	"github.com/goblimey/go-adcp/pd0/framer"
)

// ErrNoMatchingPort is returned by GetConnection when none of the
// configured devices is an active serial port.
var ErrNoMatchingPort = errors.New("no matching serial ports found")

// getPortsList gives the active serial ports.  Tests replace it.
var getPortsList = serial.GetPortsList

// openPort opens a serial port.  Tests replace it.
var openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
	return serial.Open(name, mode)
}

func main() {

	flags := appcore.AddFlags(pflag.CommandLine)
	metricsAddress := pflag.String("metrics-address", "", "listen address for the Prometheus endpoint, for example :9100")
	help := pflag.BoolP("help", "h", false, "display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s -c config [flags]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if len(flags.ConfigFile) == 0 {
		fmt.Fprintf(os.Stderr, "%s: missing config file: -c or --config\n", os.Args[0])
		os.Exit(1)
	}

	conf, errConfig := flags.Config()
	if errConfig != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], errConfig)
		os.Exit(1)
	}
	if pflag.CommandLine.Changed("metrics-address") {
		conf.MetricsAddress = *metricsAddress
	}

	logger, charmLogger := appcore.NewLogger(os.Stderr, conf.Level(), "pd0grab")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Grab(ctx, conf, logger); err != nil && !errors.Is(err, context.Canceled) {
		charmLogger.Fatal("stopped", "error", err)
	}
}

// Grab loops until the context is cancelled, reading from the serial port,
// capturing the data and logging the ensembles.
func Grab(ctx context.Context, conf *config.Config, logger *slog.Logger) error {

	// On the first trip only, insist on at least one active port.
	knownSerialPorts, errGetPorts := getPortsList()
	if errGetPorts != nil {
		return fmt.Errorf("error getting active serial ports - %w", errGetPorts)
	}
	if len(knownSerialPorts) == 0 {
		return errors.New("no active serial ports found")
	}

	capture, errCapture := NewCaptureWriter(conf.Capture.Directory, conf.Capture.FilenamePattern, logger)
	if errCapture != nil {
		return errCapture
	}
	defer capture.Close()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)
	if len(conf.MetricsAddress) > 0 {
		server := startMetricsServer(conf.MetricsAddress, reg, logger)
		defer server.Close()
	}

	outcomeChan := make(chan framer.Outcome, 10)
	logDone := make(chan struct{})
	go func() {
		LogOutcomes(outcomeChan, collector, logger)
		close(logDone)
	}()

	appCore := appcore.New(conf, []chan framer.Outcome{outcomeChan}, logger)
	appCore.Capture = io.MultiWriter(capture, byteCounter{collector})

	connect := func(ctx context.Context) (io.ReadCloser, error) {
		ports, err := getPortsList()
		if err != nil {
			return nil, err
		}
		return GetConnection(conf, ports, logger)
	}

	err := appCore.HandleOutcomes(ctx, connect)

	close(outcomeChan)
	<-logDone

	logger.Info("finished", "report", appCore.Framer.Stats().Report())

	return err
}

// GetConnection opens the first of the configured devices that is an
// active serial port.
func GetConnection(conf *config.Config, knownSerialPorts []string, logger *slog.Logger) (serial.Port, error) {
	for _, portName := range knownSerialPorts {
		for _, name := range conf.Serial.Filenames {
			if name != portName {
				continue
			}
			port, errOpen := openPort(name, conf.Serial.Mode())
			if errOpen != nil {
				return nil, errOpen
			}

			// No timeout means block until data arrives.
			timeout := conf.Serial.ReadTimeout()
			if timeout == 0 {
				timeout = serial.NoTimeout
			}
			if err := port.SetReadTimeout(timeout); err != nil {
				port.Close()
				return nil, err
			}
			logger.Info("connected", "port", name)
			return port, nil
		}
	}

	return nil, ErrNoMatchingPort
}

// LogOutcomes logs the outcomes from the channel and counts them.  It
// returns when the channel is closed.
func LogOutcomes(outcomeChan chan framer.Outcome, collector *metrics.Collector, logger *slog.Logger) {
	for outcome := range outcomeChan {
		collector.Observe(outcome)

		if outcome.Bad() {
			// The framer has already logged why.
			continue
		}

		attrs := []any{"start", outcome.Start, "bytes", outcome.End - outcome.Start}
		if n, err := outcome.Ensemble.EnsembleNumber(); err == nil {
			attrs = append(attrs, "number", n)
		}
		if t, err := outcome.Ensemble.Time(); err == nil {
			attrs = append(attrs, "time", t.Format(time.RFC3339Nano))
		}
		if len(outcome.Ensemble.Gaps) > 0 {
			attrs = append(attrs, "gaps", len(outcome.Ensemble.Gaps))
		}
		logger.Debug("ensemble", attrs...)
	}
}

func startMetricsServer(address string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("serving metrics", "address", address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return server
}

// byteCounter counts the bytes written to it.
type byteCounter struct {
	collector *metrics.Collector
}

func (b byteCounter) Write(data []byte) (int, error) {
	b.collector.AddBytes(len(data))
	return len(data), nil
}
