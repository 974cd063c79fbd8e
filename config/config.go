// The config package reads the configuration file used by the PD0
// applications.  The file may be JSON or, if its name ends in .yaml or
// .yml, YAML.  An example in JSON:
//
//	{
//	    "family": "sentinelv",
//	    "look_ahead": true,
//	    "workers": 4,
//	    "input_format": "pd0",
//	    "log_level": "info",
//	    "serial": {
//	        "speed": 115200,
//	        "parity": "no_parity",
//	        "data_bits": 8,
//	        "stop_bits": 1,
//	        "initial_status_bits": ["dtr", "rts"],
//	        "read_timeout_milliseconds": 5000,
//	        "sleep_time_after_failed_open_milliseconds": 1000,
//	        "sleep_time_on_EOF_millis": 100,
//	        "filenames": ["/dev/ttyUSB0", "/dev/ttyUSB1"]
//	    },
//	    "capture": {
//	        "directory": "/var/adcp",
//	        "filename_pattern": "adcp.%Y-%m-%d-%H.pd0"
//	    },
//	    "metrics_address": ":9100"
//	}
//
// Everything is optional.  Validate checks the values and fills in the
// defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.bug.st/serial"
	"gopkg.in/yaml.v3"

	"github.com/goblimey/go-adcp/pd0/dispatch"
)

// The input formats.
const (
	FormatPD0  = "pd0"
	FormatPD15 = "pd15"
)

// Defaults.
const (
	DefaultSpeed           = 9600
	DefaultWorkers         = 1
	DefaultLogLevel        = "info"
	DefaultFilenamePattern = "adcp.%Y-%m-%d-%H.pd0"
)

// ErrInvalid is wrapped by all of the errors from Validate.
var ErrInvalid = errors.New("config")

// Config holds the values from the config file.
type Config struct {
	// Family is the instrument family, workhorse or sentinelv.
	Family string `json:"family" yaml:"family"`

	// LookAhead controls the framer's look-ahead.  Nil means true.
	LookAhead *bool `json:"look_ahead" yaml:"look_ahead"`

	// Workers is the number of goroutines used to decode a file.
	Workers int `json:"workers" yaml:"workers"`

	// InputFormat is pd0, pd15 or empty, which means take it from the file
	// name.
	InputFormat string `json:"input_format" yaml:"input_format"`

	// HeaderLines is the number of text lines to skip at the start of an
	// input file.
	HeaderLines int `json:"header_lines" yaml:"header_lines"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Verbose adds the decoded records and a hex dump to the displays of
	// ensembles.
	Verbose bool `json:"verbose" yaml:"verbose"`

	Serial Serial `json:"serial" yaml:"serial"`

	Capture Capture `json:"capture" yaml:"capture"`

	// MetricsAddress is the listen address for the Prometheus endpoint,
	// for example ":9100".  Empty means no endpoint.
	MetricsAddress string `json:"metrics_address" yaml:"metrics_address"`

	family dispatch.Family
	level  slog.Level
}

// Serial configures a serial connection to the instrument.
type Serial struct {

	// These values are used to set the mode for serial.Open.

	// Speed is the line speed in bits per second.
	Speed int `json:"speed" yaml:"speed"`

	// Parity is no_parity (default), odd_parity, even_parity,
	// mark_parity or space_parity.
	Parity string `json:"parity" yaml:"parity"`

	// DataBits is the number of data bits in the byte: 5-8.
	DataBits int `json:"data_bits" yaml:"data_bits"`

	// StopBits is the number of stop bits 1, 1.5 or 2.
	StopBits float32 `json:"stop_bits" yaml:"stop_bits"`

	// InitialStatusBits contains zero to two values, "dtr" to set
	// DataTerminalReady and "rts" to set ReadyToSend.
	InitialStatusBits []string `json:"initial_status_bits" yaml:"initial_status_bits"`

	// These values control the handling of connections that dry up
	// or get closed.

	// ReadTimeoutMilliSeconds is the input timeout.
	ReadTimeoutMilliSeconds int `json:"read_timeout_milliseconds" yaml:"read_timeout_milliseconds"`

	// SleepTimeAfterFailedOpenMilliSeconds is the time to sleep after a
	// failed attempt to find and open a port.
	SleepTimeAfterFailedOpenMilliSeconds int `json:"sleep_time_after_failed_open_milliseconds" yaml:"sleep_time_after_failed_open_milliseconds"`

	// SleepTimeOnEOFMilliseconds is the time to sleep after end of file
	// before reopening the connection.
	SleepTimeOnEOFMilliseconds int `json:"sleep_time_on_EOF_millis" yaml:"sleep_time_on_EOF_millis"`

	// Filenames lists the possible device names of the port, for example
	// "/dev/ttyUSB0" or, on Windows, "COM4".
	Filenames []string `json:"filenames" yaml:"filenames"`

	mode serial.Mode
}

// Capture controls the files written by the capture application.
type Capture struct {
	// Directory is where the files go.  Empty means the current directory.
	Directory string `json:"directory" yaml:"directory"`

	// FilenamePattern is a strftime pattern.  A new file is started each
	// time the formatted name changes.
	FilenamePattern string `json:"filename_pattern" yaml:"filename_pattern"`
}

// Default returns a validated config with all of the defaults set.
func Default() *Config {
	var c Config
	if err := c.Validate(); err != nil {
		panic(err)
	}
	return &c
}

// GetConfig gets the config from the given file.
func GetConfig(fileName string) (*Config, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file - %w", err)
	}
	defer file.Close()

	return getConfigFromReader(file, IsYAML(fileName))
}

// IsYAML returns true if the file name says that the file is YAML.
func IsYAML(fileName string) bool {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// getConfigFromReader gets the config from the given reader.
func getConfigFromReader(configReader io.Reader, isYAML bool) (*Config, error) {
	data, errRead := io.ReadAll(configReader)
	if errRead != nil {
		return nil, fmt.Errorf("error reading config file - %w", errRead)
	}

	config, errParse := parseConfigFromBytes(data, isYAML)
	if errParse != nil {
		return nil, fmt.Errorf("not a valid config file - %w", errParse)
	}

	return config, nil
}

func parseConfigFromBytes(data []byte, isYAML bool) (*Config, error) {
	var config Config
	var err error
	if isYAML {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values and sets the defaults.
func (c *Config) Validate() error {

	family, err := dispatch.ParseFamily(c.Family)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	c.family = family
	c.Family = family.String()

	if c.LookAhead == nil {
		on := true
		c.LookAhead = &on
	}

	switch {
	case c.Workers == 0:
		c.Workers = DefaultWorkers
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalid, c.Workers)
	}

	c.InputFormat = strings.ToLower(c.InputFormat)
	switch c.InputFormat {
	case "", FormatPD0, FormatPD15:
	default:
		return fmt.Errorf("%w: illegal input format %q - expected pd0 or pd15", ErrInvalid, c.InputFormat)
	}

	if c.HeaderLines < 0 {
		return fmt.Errorf("%w: header lines must not be negative, got %d", ErrInvalid, c.HeaderLines)
	}

	if len(c.LogLevel) == 0 {
		c.LogLevel = DefaultLogLevel
	}
	if err := c.level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("%w: illegal log level %q", ErrInvalid, c.LogLevel)
	}

	if len(c.Capture.FilenamePattern) == 0 {
		c.Capture.FilenamePattern = DefaultFilenamePattern
	}

	return c.Serial.validate()
}

// FamilyValue returns the instrument family.  Call Validate first.
func (c *Config) FamilyValue() dispatch.Family {
	return c.family
}

// Level returns the log level.  Call Validate first.
func (c *Config) Level() slog.Level {
	return c.level
}

// DisplayLevel returns the level that controls the displays of ensembles:
// debug if Verbose is set, otherwise the log level.
func (c *Config) DisplayLevel() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return c.level
}

// LookAheadEnabled returns true unless look-ahead is switched off.
func (c *Config) LookAheadEnabled() bool {
	return c.LookAhead == nil || *c.LookAhead
}

// Mode returns the mode for serial.Open.  Call Validate first.
func (s *Serial) Mode() *serial.Mode {
	return &s.mode
}

// ReadTimeout returns the read timeout.
func (s *Serial) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMilliSeconds) * time.Millisecond
}

// SleepTimeAfterFailedOpen returns the time to wait before retrying a
// failed open.
func (s *Serial) SleepTimeAfterFailedOpen() time.Duration {
	return time.Duration(s.SleepTimeAfterFailedOpenMilliSeconds) * time.Millisecond
}

// SleepTimeOnEOF returns the time to wait after end of file.
func (s *Serial) SleepTimeOnEOF() time.Duration {
	return time.Duration(s.SleepTimeOnEOFMilliseconds) * time.Millisecond
}

// validate checks the serial values and sets up the mode.
func (s *Serial) validate() error {

	s.mode = serial.Mode{BaudRate: DefaultSpeed}
	if s.Speed < 0 {
		return fmt.Errorf("%w: speed must be positive, got %d", ErrInvalid, s.Speed)
	}
	if s.Speed != 0 {
		s.mode.BaudRate = s.Speed
	}

	if len(s.Parity) > 0 {
		switch s.Parity {
		case "no_parity":
			s.mode.Parity = serial.NoParity
		case "odd_parity":
			s.mode.Parity = serial.OddParity
		case "even_parity":
			s.mode.Parity = serial.EvenParity
		case "mark_parity":
			s.mode.Parity = serial.MarkParity
		case "space_parity":
			s.mode.Parity = serial.SpaceParity
		default:
			return fmt.Errorf("%w: illegal parity value %s", ErrInvalid, s.Parity)
		}
	}

	// Must be 5-8.
	if s.DataBits != 0 {
		if !(s.DataBits >= 5 && s.DataBits <= 8) {
			return fmt.Errorf("%w: data bits must be 5-8, got %d", ErrInvalid, s.DataBits)
		}
		s.mode.DataBits = s.DataBits
	}

	if s.StopBits != 0 {
		switch s.StopBits {
		case 1:
			s.mode.StopBits = serial.OneStopBit
		case 1.5:
			s.mode.StopBits = serial.OnePointFiveStopBits
		case 2:
			s.mode.StopBits = serial.TwoStopBits
		default:
			return fmt.Errorf("%w: stop bit value must be 1, 1.5 or 2.  Got %g", ErrInvalid, s.StopBits)
		}
	}

	if len(s.InitialStatusBits) > 0 {
		var bits serial.ModemOutputBits
		s.mode.InitialStatusBits = &bits
		for _, b := range s.InitialStatusBits {
			switch strings.ToLower(b) {
			case "dtr":
				bits.DTR = true
			case "rts":
				bits.RTS = true
			default:
				return fmt.Errorf("%w: illegal initial status bit value %s", ErrInvalid, b)
			}
		}
	}

	for _, d := range []int{s.ReadTimeoutMilliSeconds, s.SleepTimeAfterFailedOpenMilliSeconds, s.SleepTimeOnEOFMilliseconds} {
		if d < 0 {
			return fmt.Errorf("%w: times must not be negative, got %d", ErrInvalid, d)
		}
	}

	return nil
}
