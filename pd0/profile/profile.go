// The profile package decodes the profile records of a PD0 ensemble.  A
// profile record is a two-byte ID followed by a matrix with one value per
// depth cell per beam.  The dimensions of the matrix are not in the record.
// They come from the fixed leader decoded earlier in the same ensemble, so a
// profile record found before its fixed leader can't be decoded.
package profile

import (
	"fmt"
	"log/slog"

	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/fixedleader"
	"github.com/goblimey/go-adcp/pd0/matrix"
	"github.com/goblimey/go-adcp/pd0/record"
	"github.com/goblimey/go-adcp/pd0/utils"
)

// idTable is the layout of the part of a profile record before the matrix.
var idTable = fieldtable.Table{
	{Name: "id", Type: fieldtable.Uint16, Offset: 0},
}

// Dimensions gets the number of cells and beams of a profile from the
// records decoded so far.
type Dimensions func(records *record.Map) (cells, beams int, err error)

// FromFixedLeader returns a Dimensions that takes the cells and beams from
// the Janus fixed leader with the given tag.
func FromFixedLeader(tag string) Dimensions {
	return func(records *record.Map) (int, int, error) {
		fl, ok := records.Get(tag)
		if !ok {
			return 0, 0, fmt.Errorf("%w - no %s", record.ErrMissingDependency, tag)
		}
		return fixedleader.Dimensions(fl)
	}
}

// FromBeam5Leader returns a Dimensions for a single-beam profile whose
// cells are given by the beam 5 fixed leader with the given tag.
func FromBeam5Leader(tag string) Dimensions {
	return func(records *record.Map) (int, int, error) {
		fl, ok := records.Get(tag)
		if !ok {
			return 0, 0, fmt.Errorf("%w - no %s", record.ErrMissingDependency, tag)
		}
		cells, err := fixedleader.Beam5Cells(fl)
		return cells, 1, err
	}
}

// CellsFromFixedLeader returns a Dimensions for a single-beam profile whose
// cells are given by the Janus fixed leader with the given tag.  The
// Sentinel V correlation and echo intensity records for beam 5 are laid out
// like this.
func CellsFromFixedLeader(tag string) Dimensions {
	return func(records *record.Map) (int, int, error) {
		cells, _, err := FromFixedLeader(tag)(records)
		return cells, 1, err
	}
}

// GetRecord decodes the profile record at the given offset.  The element
// type is i16 for velocity and u8 for everything else.
func GetRecord(b []byte, offset int, tag string, kind record.Kind, t fieldtable.Type,
	dimensions Dimensions, records *record.Map, logger *slog.Logger) (*record.Record, error) {

	cells, beams, err := dimensions(records)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}

	values := fieldtable.Decode(b, offset, idTable, logger)
	id, _ := values.Uint("id")

	m, err := matrix.Decode(b, offset+utils.LenRecordID, cells, beams, t)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", tag, err)
	}

	r := record.Record{
		Tag:     tag,
		Kind:    kind,
		ID:      uint16(id),
		Offset:  offset,
		Fields:  values,
		Profile: m,
	}

	return &r, nil
}

// Len returns the length of a profile record with the given dimensions.
func Len(cells, beams int, t fieldtable.Type) int {
	return utils.LenRecordID + matrix.Len(cells, beams, t)
}
