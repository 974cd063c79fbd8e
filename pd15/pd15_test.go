package pd15

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/goblimey/go-adcp/pd0/framer"
	"github.com/goblimey/go-adcp/pd0/testdata"
)

func TestToPD0(t *testing.T) {
	var testData = []struct {
		description string
		line        string
		want        []byte
	}{
		{"sync marker", "_7<@", []byte{0x7f, 0x7f, 0x00}},
		{"two groups", "_7<@@@@@", []byte{0x7f, 0x7f, 0x00, 0x00, 0x00, 0x00}},
		{"three characters", "_7<", []byte{0x7f, 0x7f}},
		{"two characters", "_0", []byte{0x7f}},
		{"one character", "_", []byte{}},
		{"group and one character", "_7<@_", []byte{0x7f, 0x7f, 0x00}},
		{"high bits ignored", "\xdf\xf7\xfc\xc0", []byte{0x7f, 0x7f, 0x00}},
		{"all ones", "????", []byte{0xff, 0xff, 0xff}},
		{"empty", "", []byte{}},
	}

	for _, td := range testData {
		got := ToPD0([]byte(td.line))
		if !bytes.Equal(td.want, got) {
			t.Errorf("%s: want %x got %x", td.description, td.want, got)
		}
	}
}

func TestFromPD0(t *testing.T) {
	var testData = []struct {
		description string
		pd0         []byte
		want        string
	}{
		{"sync marker", []byte{0x7f, 0x7f, 0x00}, "_7<@"},
		{"two bytes", []byte{0x7f, 0x7f}, "_7<"},
		{"one byte", []byte{0x7f}, "_0"},
		{"all ones", []byte{0xff, 0xff, 0xff}, "????"},
		{"empty", []byte{}, ""},
	}

	for _, td := range testData {
		got := string(FromPD0(td.pd0))
		if td.want != got {
			t.Errorf("%s: want %q got %q", td.description, td.want, got)
		}
	}
}

// TestRoundTrip checks that converting to PD15 and back gives the original
// bytes and that the PD15 is printable.
func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := rapid.SliceOf(rapid.Byte()).Draw(t, "pd0")

		line := FromPD0(b)
		for _, c := range line {
			if c < 0x20 || c > 0x5f {
				t.Fatalf("unprintable character 0x%02x in %q", c, line)
			}
		}

		got := ToPD0(line)
		if !bytes.Equal(b, got) {
			t.Fatalf("want %x got %x", b, got)
		}
	})
}

// TestEnsemble checks that an ensemble sent as PD15 decodes.
func TestEnsemble(t *testing.T) {
	ensemble := testdata.WorkhorseEnsemble(7, 10, 4)
	file := "TRDI PD15 capture\r\nstation 4\r\n" + string(FromPD0(ensemble)) + "\r\n"

	line, err := ReadLine(strings.NewReader(file), 2)
	if err != nil {
		t.Fatal(err)
	}

	pd0 := ToPD0(line)
	if !bytes.Equal(ensemble, pd0) {
		t.Fatalf("want %d bytes got %d", len(ensemble), len(pd0))
	}

	outcomes := framer.New().Decode(pd0)
	if len(outcomes) != 1 || outcomes[0].Bad() {
		t.Fatalf("want one good ensemble got %v", outcomes)
	}
	n, _ := outcomes[0].Ensemble.EnsembleNumber()
	if n != 7 {
		t.Errorf("want ensemble 7 got %d", n)
	}
}

func TestReadLine(t *testing.T) {
	var testData = []struct {
		description string
		input       string
		headerLines int
		want        string
		wantErr     error
	}{
		{"no headers", "abcd\n", 0, "abcd", nil},
		{"no line end", "abcd", 0, "abcd", nil},
		{"CRLF", "h1\r\nabcd\r\n", 1, "abcd", nil},
		{"only the first line", "h1\nabcd\nefgh\n", 1, "abcd", nil},
		{"missing headers", "h1\n", 2, "", ErrNoData},
		{"no data line", "h1\nh2\n", 2, "", ErrNoData},
		{"empty data line", "h1\n\r\n", 1, "", ErrNoData},
		{"empty", "", 0, "", ErrNoData},
	}

	for _, td := range testData {
		got, err := ReadLine(strings.NewReader(td.input), td.headerLines)
		if td.wantErr != nil {
			if !errors.Is(err, td.wantErr) {
				t.Errorf("%s: want error %v got %v", td.description, td.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", td.description, err)
			continue
		}
		if td.want != string(got) {
			t.Errorf("%s: want %q got %q", td.description, td.want, got)
		}
	}
}

func TestFromHex(t *testing.T) {
	got, err := FromHex(" 5f373c40\n")
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x7f, 0x7f, 0x00}
	if !cmp.Equal(want, got) {
		t.Error(cmp.Diff(want, got))
	}

	if _, err := FromHex("5f37zz"); err == nil {
		t.Error("want an error for bad hex")
	}
}
