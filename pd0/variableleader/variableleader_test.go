package variableleader

import (
	"errors"
	"testing"
	"time"

	"github.com/goblimey/go-adcp/pd0/fieldtable"
)

func TestTable(t *testing.T) {
	if Table.Size() != 65 {
		t.Errorf("want 65 bytes got %d", Table.Size())
	}
}

func TestGetRecord(t *testing.T) {
	b := make([]byte, 3+Table.Size())
	b[3] = 0x80
	b[5] = 0x39 // ensemble 12345
	b[6] = 0x30
	b[3+20] = 0x6a // pitch -150
	b[3+21] = 0xff

	got := GetRecord(b, 3, "variable_leader", nil)

	if got.ID != 0x0080 || got.Offset != 3 || got.Tag != "variable_leader" {
		t.Errorf("unexpected record %+v", got)
	}

	if n, _ := got.Fields.Uint("ensemble_number"); n != 12345 {
		t.Errorf("want ensemble 12345 got %d", n)
	}

	if pitch, _ := got.Fields.Int("pitch"); pitch != -150 {
		t.Errorf("want pitch -150 got %d", pitch)
	}

	if len(got.Fields.Omitted) != 0 {
		t.Errorf("unexpected omitted fields %v", got.Fields.Omitted)
	}
}

// TestTimestamp checks the choice between the two clocks and the range
// checks.
func TestTimestamp(t *testing.T) {

	clock := func(year, month, day, hour, minute, second, hundredths uint64) map[string]uint64 {
		return map[string]uint64{
			"rtc_year": year, "rtc_month": month, "rtc_day": day, "rtc_hour": hour,
			"rtc_minute": minute, "rtc_second": second, "rtc_hundredths": hundredths,
		}
	}

	withY2K := func(m map[string]uint64, century, year uint64) map[string]uint64 {
		m["rtc_y2k_century"] = century
		m["rtc_y2k_year"] = year
		for _, name := range []string{"month", "day", "hour", "minute", "hundredths"} {
			m["rtc_y2k_"+name] = m["rtc_"+name]
		}
		m["rtc_y2k_seconds"] = m["rtc_second"]
		return m
	}

	var testData = []struct {
		description string
		raw         map[string]uint64
		truncate    int
		want        time.Time
		wantError   bool
	}{
		{"y2k clock", withY2K(clock(99, 5, 12, 10, 20, 30, 25), 20, 23), 0,
			time.Date(2023, time.May, 12, 10, 20, 30, 250000000, time.UTC), false},
		{"century zero uses the two-digit year", withY2K(clock(23, 1, 2, 3, 4, 5, 6), 0, 0), 0,
			time.Date(2023, time.January, 2, 3, 4, 5, 60000000, time.UTC), false},
		{"no y2k clock", clock(24, 2, 29, 23, 59, 59, 99), 57,
			time.Date(2024, time.February, 29, 23, 59, 59, 990000000, time.UTC), false},
		{"month zero", clock(23, 0, 1, 0, 0, 0, 0), 57, time.Time{}, true},
		{"thirteenth month", clock(23, 13, 1, 0, 0, 0, 0), 57, time.Time{}, true},
		{"hour 24", clock(23, 1, 1, 24, 0, 0, 0), 57, time.Time{}, true},
		{"31st April", clock(23, 4, 31, 0, 0, 0, 0), 57, time.Time{}, true},
		{"29th February 2023", clock(23, 2, 29, 0, 0, 0, 0), 57, time.Time{}, true},
		{"hundredths 100", clock(23, 1, 1, 0, 0, 0, 100), 57, time.Time{}, true},
		{"no clock", clock(23, 1, 1, 0, 0, 0, 0), 8, time.Time{}, true},
	}

	for _, td := range testData {
		b := make([]byte, Table.Size())
		if err := fieldtable.Encode(b, 0, Table, fieldtable.Build(Table, td.raw)); err != nil {
			t.Fatal(err)
		}
		if td.truncate > 0 {
			b = b[:td.truncate]
		}

		got, err := Timestamp(fieldtable.Decode(b, 0, Table, nil))

		if td.wantError {
			if !errors.Is(err, ErrNoClock) {
				t.Errorf("%s: want ErrNoClock got %v", td.description, err)
			}
			continue
		}

		if err != nil {
			t.Errorf("%s: %v", td.description, err)
			continue
		}

		if !got.Equal(td.want) {
			t.Errorf("%s: want %v got %v", td.description, td.want, got)
		}
	}
}
