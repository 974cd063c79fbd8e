package header

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kylelemons/godebug/diff"
)

// sixDataTypes is the header of a Workhorse ensemble with six data types,
// four beams and 40 cells, 952 bytes long not counting the checksum.
var sixDataTypes = []byte{
	0x7f, 0x7f, 0xb8, 0x03, 0x00, 0x06,
	0x12, 0x00, 0x4d, 0x00, 0x8e, 0x00, 0xd0, 0x01, 0x72, 0x02, 0x14, 0x03,
}

func TestNew(t *testing.T) {
	want := Header{
		ID:                0x7f,
		DataSource:        0x7f,
		NumberOfBytes:     952,
		NumberOfDataTypes: 2,
		AddressOffsets:    []uint16{10, 69},
	}

	got := New(0x7f, 0x7f, 952, 0, []uint16{10, 69}, slog.LevelInfo)

	if !cmp.Equal(want, *got, cmpopts.IgnoreUnexported(Header{})) {
		t.Error(cmp.Diff(want, *got, cmpopts.IgnoreUnexported(Header{})))
	}

	if got.Len() != 10 {
		t.Errorf("want length 10 got %d", got.Len())
	}

	if got.EnsembleLength() != 954 {
		t.Errorf("want ensemble length 954 got %d", got.EnsembleLength())
	}
}

// TestGetHeader checks that GetHeader correctly interprets a header or
// returns an appropriate error.
func TestGetHeader(t *testing.T) {

	var testData = []struct {
		description string
		bitStream   []byte
		wantError   error
		want        *Header
	}{
		{"sync bytes only", []byte{0x7f, 0x7f}, ErrTruncatedHeader, nil},
		{"four bytes", []byte{0x7f, 0x7f, 0x7f, 0xff}, ErrTruncatedHeader, nil},
		{"empty", []byte{}, ErrTruncatedHeader, nil},
		{"short offset table", sixDataTypes[:17], ErrTruncatedAddressTable, nil},
		{"no data types", []byte{0x7f, 0x7f, 0x08, 0x00, 0x00, 0x00}, nil,
			New(0x7f, 0x7f, 8, 0, []uint16{}, slog.LevelInfo)},
		{"six data types", sixDataTypes, nil,
			New(0x7f, 0x7f, 952, 0, []uint16{18, 77, 142, 464, 626, 788}, slog.LevelInfo)},
	}

	for _, td := range testData {
		got, gotError := GetHeader(td.bitStream, slog.LevelInfo)
		if td.wantError != nil {
			if gotError == nil {
				t.Errorf("%s: expected error %v", td.description, td.wantError)
				continue
			}
			if !errors.Is(gotError, td.wantError) {
				t.Errorf("%s: want error %v got %v", td.description, td.wantError, gotError)
			}
			if got != nil {
				t.Errorf("%s: expected a nil header", td.description)
			}
			continue
		}

		if gotError != nil {
			t.Errorf("%s: unexpected error %v", td.description, gotError)
			continue
		}

		if !cmp.Equal(*td.want, *got, cmpopts.IgnoreUnexported(Header{})) {
			t.Errorf("%s: %s", td.description,
				cmp.Diff(*td.want, *got, cmpopts.IgnoreUnexported(Header{})))
		}

		if int(got.NumberOfDataTypes) != len(got.AddressOffsets) {
			t.Errorf("%s: %d data types but %d address offsets", td.description,
				got.NumberOfDataTypes, len(got.AddressOffsets))
		}
	}
}

// TestEncode checks that Encode writes back what GetHeader reads.
func TestEncode(t *testing.T) {
	h, err := GetHeader(sixDataTypes, slog.LevelInfo)
	if err != nil {
		t.Fatal(err)
	}

	b := make([]byte, h.Len())
	h.Encode(b)

	if !cmp.Equal(sixDataTypes, b) {
		t.Error(cmp.Diff(sixDataTypes, b))
	}
}

func TestString(t *testing.T) {
	const wantInfo = "header ID 0x7f, data source 0x7f, 952 bytes, 2 data types\n"
	const wantDebug = wantInfo + "spare 0x00, address offsets {10, 69}\n"

	h := New(0x7f, 0x7f, 952, 0, []uint16{10, 69}, slog.LevelInfo)
	if got := h.String(); got != wantInfo {
		t.Error(diff.Diff(wantInfo, got))
	}

	h = New(0x7f, 0x7f, 952, 0, []uint16{10, 69}, slog.LevelDebug)
	if got := h.String(); got != wantDebug {
		t.Error(diff.Diff(wantDebug, got))
	}
}
