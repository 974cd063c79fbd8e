// The variableleader package handles the variable leader record of a PD0
// ensemble, which carries the values that change from ping to ping: the
// ensemble number, the real time clock, heading, pitch, roll, temperature,
// pressure and so on.  Workhorse and Sentinel V instruments use the same
// layout.
//
// Values are left in the instrument's units, for example heading in
// hundredths of a degree and pressure in decapascals.
package variableleader

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/record"
)

// ErrNoClock is returned by Timestamp when the clock fields are missing or
// don't make a valid date.
var ErrNoClock = errors.New("no valid real time clock values")

// Table is the layout of the variable leader.
var Table = fieldtable.Table{
	{Name: "id", Type: fieldtable.Uint16, Offset: 0},
	{Name: "ensemble_number", Type: fieldtable.Uint16, Offset: 2},
	{Name: "rtc_year", Type: fieldtable.Uint8, Offset: 4},
	{Name: "rtc_month", Type: fieldtable.Uint8, Offset: 5},
	{Name: "rtc_day", Type: fieldtable.Uint8, Offset: 6},
	{Name: "rtc_hour", Type: fieldtable.Uint8, Offset: 7},
	{Name: "rtc_minute", Type: fieldtable.Uint8, Offset: 8},
	{Name: "rtc_second", Type: fieldtable.Uint8, Offset: 9},
	{Name: "rtc_hundredths", Type: fieldtable.Uint8, Offset: 10},
	{Name: "ensemble_roll_over", Type: fieldtable.Uint8, Offset: 11},
	{Name: "bit_result", Type: fieldtable.Uint16, Offset: 12},
	{Name: "speed_of_sound", Type: fieldtable.Uint16, Offset: 14},
	{Name: "depth_of_transducer", Type: fieldtable.Uint16, Offset: 16},
	{Name: "heading", Type: fieldtable.Uint16, Offset: 18},
	{Name: "pitch", Type: fieldtable.Int16, Offset: 20},
	{Name: "roll", Type: fieldtable.Int16, Offset: 22},
	{Name: "salinity", Type: fieldtable.Uint16, Offset: 24},
	{Name: "temperature", Type: fieldtable.Int16, Offset: 26},
	{Name: "mpt_minutes", Type: fieldtable.Uint8, Offset: 28},
	{Name: "mpt_seconds", Type: fieldtable.Uint8, Offset: 29},
	{Name: "mpt_hundredths", Type: fieldtable.Uint8, Offset: 30},
	{Name: "heading_standard_deviation", Type: fieldtable.Uint8, Offset: 31},
	{Name: "pitch_standard_deviation", Type: fieldtable.Uint8, Offset: 32},
	{Name: "roll_standard_deviation", Type: fieldtable.Uint8, Offset: 33},
	{Name: "transmit_current", Type: fieldtable.Uint8, Offset: 34},
	{Name: "transmit_voltage", Type: fieldtable.Uint8, Offset: 35},
	{Name: "ambient_temperature", Type: fieldtable.Uint8, Offset: 36},
	{Name: "pressure_positive", Type: fieldtable.Uint8, Offset: 37},
	{Name: "pressure_negative", Type: fieldtable.Uint8, Offset: 38},
	{Name: "attitude_temperature", Type: fieldtable.Uint8, Offset: 39},
	{Name: "attitude", Type: fieldtable.Uint8, Offset: 40},
	{Name: "contamination_sensor", Type: fieldtable.Uint8, Offset: 41},
	{Name: "error_status_word", Type: fieldtable.Uint32, Offset: 42},
	{Name: "reserved", Type: fieldtable.Uint16, Offset: 46},
	{Name: "pressure", Type: fieldtable.Uint32, Offset: 48},
	{Name: "pressure_variance", Type: fieldtable.Uint32, Offset: 52},
	{Name: "spare", Type: fieldtable.Uint8, Offset: 56},
	{Name: "rtc_y2k_century", Type: fieldtable.Uint8, Offset: 57},
	{Name: "rtc_y2k_year", Type: fieldtable.Uint8, Offset: 58},
	{Name: "rtc_y2k_month", Type: fieldtable.Uint8, Offset: 59},
	{Name: "rtc_y2k_day", Type: fieldtable.Uint8, Offset: 60},
	{Name: "rtc_y2k_hour", Type: fieldtable.Uint8, Offset: 61},
	{Name: "rtc_y2k_minute", Type: fieldtable.Uint8, Offset: 62},
	{Name: "rtc_y2k_seconds", Type: fieldtable.Uint8, Offset: 63},
	{Name: "rtc_y2k_hundredths", Type: fieldtable.Uint8, Offset: 64},
}

// GetRecord decodes a variable leader at the given offset.
func GetRecord(b []byte, offset int, tag string, logger *slog.Logger) *record.Record {

	values := fieldtable.Decode(b, offset, Table, logger)
	id, _ := values.Uint("id")

	r := record.Record{
		Tag:    tag,
		Kind:   record.KindVariableLeader,
		ID:     uint16(id),
		Offset: offset,
		Fields: values,
	}

	return &r
}

// Timestamp returns the time of the ensemble in UTC.  The Y2K clock (four
// digit year) is used if it's present, otherwise the two-digit year is
// taken to be in this century.
func Timestamp(values fieldtable.Values) (time.Time, error) {

	var zeroTimeValue time.Time

	names := []string{"rtc_y2k_century", "rtc_y2k_year", "rtc_y2k_month", "rtc_y2k_day",
		"rtc_y2k_hour", "rtc_y2k_minute", "rtc_y2k_seconds", "rtc_y2k_hundredths"}

	clock, ok := getAll(values, names)
	year := 0
	if ok && clock[0] > 0 {
		year = clock[0]*100 + clock[1]
	} else {
		names = []string{"rtc_year", "rtc_year", "rtc_month", "rtc_day",
			"rtc_hour", "rtc_minute", "rtc_second", "rtc_hundredths"}
		clock, ok = getAll(values, names)
		if !ok {
			return zeroTimeValue, fmt.Errorf("%w - clock fields missing", ErrNoClock)
		}
		year = 2000 + clock[1]
	}

	month, day, hour, minute, second, hundredths :=
		clock[2], clock[3], clock[4], clock[5], clock[6], clock[7]

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 ||
		minute > 59 || second > 59 || hundredths > 99 {
		return zeroTimeValue, fmt.Errorf("%w - %d-%d-%d %d:%d:%d.%02d",
			ErrNoClock, year, month, day, hour, minute, second, hundredths)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second,
		hundredths*int(10*time.Millisecond), time.UTC)

	// time.Date normalises 31st April to 1st May.
	if t.Day() != day {
		return zeroTimeValue, fmt.Errorf("%w - no day %d in month %d", ErrNoClock, day, month)
	}

	return t, nil
}

// getAll gets the named values as ints.
func getAll(values fieldtable.Values, names []string) ([]int, bool) {
	result := make([]int, len(names))
	for i, name := range names {
		v, ok := values.Uint(name)
		if !ok {
			return nil, false
		}
		result[i] = int(v)
	}
	return result, true
}
