// The matrix package decodes the per-cell per-beam profile records of a PD0
// ensemble: velocity, correlation, echo intensity, percent good and status.
//
// A profile record is a two-byte ID followed by one value for each beam in
// each depth cell, cell outer and beam inner:
//
//	cell 1 beam 1, cell 1 beam 2 ... cell 1 beam n, cell 2 beam 1 ...
//
// The number of cells and beams come from the fixed leader of the same
// ensemble.  Values are not scaled and bad-value markers such as -32768 in a
// velocity cell are passed through unchanged.
package matrix

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/utils"
)

// ErrShortData is returned when the data is too short to hold the matrix.
var ErrShortData = errors.New("data too short for the profile")

// Matrix holds a profile, one row per depth cell, one column per beam.
type Matrix [][]int64

// Cells returns the number of rows.
func (m Matrix) Cells() int {
	return len(m)
}

// Beams returns the number of columns.
func (m Matrix) Beams() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Column returns the values for one beam, one per cell.
func (m Matrix) Column(beam int) []int64 {
	column := make([]int64, len(m))
	for i, row := range m {
		column[i] = row[beam]
	}
	return column
}

// String returns the matrix one cell per line.
func (m Matrix) String() string {
	var sb strings.Builder
	for i, row := range m {
		values := make([]string, len(row))
		for j, v := range row {
			values[j] = fmt.Sprintf("%d", v)
		}
		sb.WriteString(fmt.Sprintf("%3d {%s}\n", i+1, strings.Join(values, ", ")))
	}
	return sb.String()
}

// Len returns the number of bytes that a matrix with the given dimensions
// occupies in a record, not counting the record ID.
func Len(cells, beams int, t fieldtable.Type) int {
	return cells * beams * t.Size()
}

// Decode decodes cells x beams values of the given type starting at pos in
// b.  The result always has exactly cells rows of beams values.  If b is too
// short it returns an error wrapping ErrShortData.
func Decode(b []byte, pos, cells, beams int, t fieldtable.Type) (Matrix, error) {

	if cells < 0 || beams < 0 {
		return nil, fmt.Errorf("%w - %d cells, %d beams", ErrShortData, cells, beams)
	}

	length := Len(cells, beams, t)
	if !utils.Available(b, pos, length) {
		return nil, fmt.Errorf("%w - %d cells x %d beams of %s need %d bytes from %d, got %d",
			ErrShortData, cells, beams, t.String(), length, pos, len(b))
	}

	size := t.Size()
	m := make(Matrix, cells)
	for cell := range m {
		row := make([]int64, beams)
		for beam := range row {
			v := fieldtable.Value{Type: t, Raw: t.Read(b, pos)}
			row[beam] = v.Int()
			pos += size
		}
		m[cell] = row
	}

	return m, nil
}

// Encode writes the matrix into b at pos.  It's the inverse of Decode.
func Encode(b []byte, pos int, m Matrix, t fieldtable.Type) error {
	length := Len(m.Cells(), m.Beams(), t)
	if !utils.Available(b, pos, length) {
		return fmt.Errorf("%w - need %d bytes from %d, got %d", ErrShortData, length, pos, len(b))
	}
	for _, row := range m {
		for _, v := range row {
			t.Write(b, pos, uint64(v))
			pos += t.Size()
		}
	}
	return nil
}
