// displaypd0 reads PD0 data from files or the standard input and writes a
// readable version of the ensembles to the standard output.
//
// PD0 is the binary format used by Teledyne RD Instruments Acoustic Doppler
// Current Profilers (ADCPs).  Each ensemble holds the data from one set of
// pings: a fixed leader describing the instrument setup, a variable leader
// with the time and the sensor readings, and profiles of velocity,
// correlation, echo intensity and percent good for each depth cell and
// each beam.
//
// Data captured from an instrument is often damaged: bytes are lost or
// changed on the serial line and recordings are cut short.  The tool
// checks every ensemble and reports the ones that are damaged, but carries
// on and decodes the rest.  For example:
//
//	0: ensemble at 0-954
//	header ID 0x7f, data source 0x7f, 952 bytes, 6 data types
//	time 2023-05-12 10:20:30.25 +0000 UTC
//	records: fixed_leader, variable_leader, velocity, correlation, echo_intensity, percent_good
//	setup:
//	  300 kHz system
//	  convex beam pattern
//	  ...
//
//	1: bad ensemble at 954-1908: checksum mismatch - calculated 0x3a2b, ensemble contains 0x3a2c
//
//	bad ensembles 1/2
//	  checksum_mismatch 1
//	record gaps 0
//
// With --verbose each ensemble is followed by its decoded records and a
// hex dump.
//
// Usage:
//
//	displaypd0 [flags] file...
//
// Examples:
//
//	displaypd0 adcp.000
//
//	displaypd0 --family sentinelv --workers 4 deployment.pd0.zst
//
//	displaypd0 --format pd15 --headers 2 - # take input from the standard input.
//
// Files ending in .gz or .zst are decompressed.  Files ending in .pd15 are
// taken to be PD15, which is PD0 packed into printable characters.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/goblimey/go-adcp/apps/appcore"
	"github.com/goblimey/go-adcp/config"
	"github.com/goblimey/go-adcp/pd0/framer"
)

func main() {

	flags := appcore.AddFlags(pflag.CommandLine)
	help := pflag.BoolP("help", "h", false, "display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Use \"-\" as the file name to read the standard input.\n\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help || pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(1)
	}

	conf, errConfig := flags.Config()
	if errConfig != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], errConfig)
		os.Exit(1)
	}

	logger, charmLogger := appcore.NewLogger(os.Stderr, conf.Level(), "displaypd0")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := HandleFiles(ctx, conf, pflag.Args(), os.Stdout, logger); err != nil {
		charmLogger.Fatal("cannot display ensembles", "error", err)
	}
}

// HandleFiles decodes the named files and writes a readable version of
// each outcome to the writer, followed by a report of the bad ensembles.
// Bad ensembles are not an error.  It returns the counts.
func HandleFiles(ctx context.Context, conf *config.Config, fileNames []string, writer io.Writer, logger *slog.Logger) (framer.Stats, error) {

	appCore := appcore.New(conf, nil, logger)

	for _, name := range fileNames {
		if len(fileNames) > 1 {
			if _, err := fmt.Fprintf(writer, "%s\n\n", name); err != nil {
				return appCore.Framer.Stats(), err
			}
		}

		outcomeChan := make(chan framer.Outcome, 2)
		displayDone := make(chan error, 1)
		go func() { displayDone <- DisplayOutcomes(outcomeChan, writer) }()

		appCore.Channels = []chan framer.Outcome{outcomeChan}
		errHandle := appCore.HandleFile(ctx, name)

		close(outcomeChan)
		errDisplay := <-displayDone

		if errHandle != nil {
			return appCore.Framer.Stats(), fmt.Errorf("%s: %w", name, errHandle)
		}
		if errDisplay != nil {
			return appCore.Framer.Stats(), errDisplay
		}
	}

	stats := appCore.Framer.Stats()
	_, errWrite := io.WriteString(writer, "\n"+stats.Report())
	return stats, errWrite
}

// DisplayOutcomes receives outcomes from the given channel, produces a
// readable display of each and writes them to the writer.  It can be run
// in a goroutine.  It reads until the channel is closed, even after a
// write error.
func DisplayOutcomes(outcomeChan chan framer.Outcome, writer io.Writer) error {
	var writeError error
	for outcome := range outcomeChan {
		if writeError != nil {
			continue
		}
		display := outcome.String() + "\n"
		_, writeError = io.WriteString(writer, display)
	}
	return writeError
}
