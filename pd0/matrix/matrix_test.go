package matrix

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kylelemons/godebug/diff"
	"pgregory.net/rapid"

	"github.com/goblimey/go-adcp/pd0/fieldtable"
)

// TestDecode checks the cell-major beam-minor order and the handling of
// signed and unsigned types.
func TestDecode(t *testing.T) {

	// Two cells, three beams of i16, preceded by a two-byte record ID.
	velocity := []byte{
		0x00, 0x01,
		0x01, 0x00, 0x02, 0x00, 0x03, 0x00,
		0xff, 0xff, 0x00, 0x80, 0x10, 0x27,
	}

	// Three cells, two beams of u8.
	correlation := []byte{0x00, 0x02, 0x01, 0x02, 0x03, 0x04, 0xfe, 0xff}

	var testData = []struct {
		description string
		bitStream   []byte
		cells       int
		beams       int
		typ         fieldtable.Type
		want        Matrix
	}{
		{"velocity", velocity, 2, 3, fieldtable.Int16,
			Matrix{{1, 2, 3}, {-1, -32768, 10000}}},
		{"correlation", correlation, 3, 2, fieldtable.Uint8,
			Matrix{{1, 2}, {3, 4}, {254, 255}}},
		{"no cells", velocity, 0, 4, fieldtable.Int16, Matrix{}},
		{"no beams", velocity, 3, 0, fieldtable.Int16, Matrix{{}, {}, {}}},
	}

	for _, td := range testData {
		got, err := Decode(td.bitStream, 2, td.cells, td.beams, td.typ)
		if err != nil {
			t.Errorf("%s: %v", td.description, err)
			continue
		}
		if !cmp.Equal(td.want, got) {
			t.Errorf("%s: %s", td.description, cmp.Diff(td.want, got))
		}
	}
}

func TestDecodeShortData(t *testing.T) {
	b := make([]byte, 2+4*4*2-1)

	got, err := Decode(b, 2, 4, 4, fieldtable.Int16)

	if !errors.Is(err, ErrShortData) {
		t.Errorf("want ErrShortData got %v", err)
	}
	if got != nil {
		t.Error("want a nil matrix")
	}
}

// TestDimensions checks that the matrix always has exactly cells rows of
// beams values, including when either is zero.
func TestDimensions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cells := rapid.IntRange(0, 128).Draw(t, "cells")
		beams := rapid.IntRange(0, 5).Draw(t, "beams")
		typ := rapid.SampledFrom([]fieldtable.Type{fieldtable.Int16, fieldtable.Uint8}).Draw(t, "type")

		b := make([]byte, 2+Len(cells, beams, typ))

		m, err := Decode(b, 2, cells, beams, typ)
		if err != nil {
			t.Fatal(err)
		}
		if len(m) != cells {
			t.Fatalf("want %d rows got %d", cells, len(m))
		}
		for i, row := range m {
			if len(row) != beams {
				t.Fatalf("row %d: want %d values got %d", i, beams, len(row))
			}
		}
	})
}

// TestRoundTrip checks that Encode is the inverse of Decode.
func TestRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cells := rapid.IntRange(1, 20).Draw(t, "cells")
		beams := rapid.IntRange(1, 4).Draw(t, "beams")

		want := make(Matrix, cells)
		for i := range want {
			want[i] = make([]int64, beams)
			for j := range want[i] {
				want[i][j] = int64(rapid.Int16().Draw(t, "v"))
			}
		}

		b := make([]byte, Len(cells, beams, fieldtable.Int16))
		if err := Encode(b, 0, want, fieldtable.Int16); err != nil {
			t.Fatal(err)
		}

		got, err := Decode(b, 0, cells, beams, fieldtable.Int16)
		if err != nil {
			t.Fatal(err)
		}
		if !cmp.Equal(want, got) {
			t.Fatal(cmp.Diff(want, got))
		}
	})
}

func TestColumnAndString(t *testing.T) {
	m := Matrix{{1, 2}, {3, -4}}

	if !cmp.Equal([]int64{2, -4}, m.Column(1)) {
		t.Errorf("want {2, -4} got %v", m.Column(1))
	}

	const want = "  1 {1, 2}\n  2 {3, -4}\n"
	if got := m.String(); got != want {
		t.Error(diff.Diff(want, got))
	}

	if m.Cells() != 2 || m.Beams() != 2 {
		t.Errorf("want 2x2 got %dx%d", m.Cells(), m.Beams())
	}
}
