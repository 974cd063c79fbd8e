package appcore

import (
	"github.com/spf13/pflag"

	"github.com/goblimey/go-adcp/config"
)

// Flags holds the command line flags that the applications share.  A flag
// that's given overrides the value from the config file.
type Flags struct {
	ConfigFile  string
	Family      string
	Format      string
	HeaderLines int
	Workers     int
	NoLookAhead bool
	LogLevel    string
	Verbose     bool

	flagSet *pflag.FlagSet
}

// AddFlags defines the shared flags in the flag set.
func AddFlags(fs *pflag.FlagSet) *Flags {
	f := Flags{flagSet: fs}
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "JSON or YAML config file")
	fs.StringVarP(&f.Family, "family", "f", "", "instrument family: workhorse or sentinelv")
	fs.StringVar(&f.Format, "format", "", "input format: pd0 or pd15 (default from the file name)")
	fs.IntVar(&f.HeaderLines, "headers", 0, "number of text lines to skip at the start of each file")
	fs.IntVarP(&f.Workers, "workers", "w", 0, "number of goroutines decoding ensembles")
	fs.BoolVar(&f.NoLookAhead, "no-lookahead", false, "don't look past a sync marker for the end of an ensemble")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.BoolVarP(&f.Verbose, "verbose", "v", false, "show the decoded records and a hex dump of each ensemble")
	return &f
}

// Config reads the config file, if one was given, and applies the flags.
// Call it after the flag set has been parsed.
func (f *Flags) Config() (*config.Config, error) {
	conf := &config.Config{}
	if len(f.ConfigFile) > 0 {
		var err error
		conf, err = config.GetConfig(f.ConfigFile)
		if err != nil {
			return nil, err
		}
	}

	if f.flagSet.Changed("family") {
		conf.Family = f.Family
	}
	if f.flagSet.Changed("format") {
		conf.InputFormat = f.Format
	}
	if f.flagSet.Changed("headers") {
		conf.HeaderLines = f.HeaderLines
	}
	if f.flagSet.Changed("workers") {
		conf.Workers = f.Workers
	}
	if f.flagSet.Changed("no-lookahead") {
		on := !f.NoLookAhead
		conf.LookAhead = &on
	}
	if f.flagSet.Changed("log-level") {
		conf.LogLevel = f.LogLevel
	}
	if f.flagSet.Changed("verbose") {
		conf.Verbose = f.Verbose
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}
