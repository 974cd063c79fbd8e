// The dispatch package maps the record IDs found in a PD0 ensemble to the
// functions that decode them.  There is one table for each instrument family.
//
// Workhorse (4 beam Janus) instruments:
//
//	0x0000 fixed_leader
//	0x0080 variable_leader
//	0x0100 velocity
//	0x0200 correlation
//	0x0300 echo_intensity
//	0x0400 percent_good
//	0x0500 status
//	0x0600 bottom_track (not supported)
//
// Sentinel V instruments use the same IDs for the four Janus beams but the
// tags have a "_janus" suffix, for example "velocity_janus".  They add
// records for the vertical beam:
//
//	0x0f01 fixed_leader_beam5
//	0x0a00 velocity_beam5
//	0x0b00 correlation_beam5
//	0x0c00 echo_intensity_beam5
//	0x0d00 percent_good_beam5 (not supported)
//
// Records with IDs that aren't in the table are skipped.
package dispatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/goblimey/go-adcp/pd0/bottomtrack"
	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/fixedleader"
	"github.com/goblimey/go-adcp/pd0/profile"
	"github.com/goblimey/go-adcp/pd0/record"
	"github.com/goblimey/go-adcp/pd0/utils"
	"github.com/goblimey/go-adcp/pd0/variableleader"
)

// ErrBadOffset is returned when an address offset doesn't point at a record
// inside the ensemble.
var ErrBadOffset = errors.New("address offset outside the ensemble")

// ErrUnknownFamily is returned by ParseFamily.
var ErrUnknownFamily = errors.New("unknown instrument family")

// Family is an instrument family.
type Family int

// The instrument families.
const (
	Workhorse Family = iota
	SentinelV
)

func (f Family) String() string {
	switch f {
	case Workhorse:
		return "workhorse"
	case SentinelV:
		return "sentinelv"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// ParseFamily converts a name such as "workhorse" or "sentinelv" to a
// Family.  The case is ignored.
func ParseFamily(name string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "workhorse", "janus", "":
		return Workhorse, nil
	case "sentinelv", "sentinel_v", "sentinel-v", "sentinel":
		return SentinelV, nil
	default:
		return Workhorse, fmt.Errorf("%w %q - expected workhorse or sentinelv", ErrUnknownFamily, name)
	}
}

// DecodeFunc decodes the record at offset in the ensemble b.  The records
// decoded so far are supplied so that profiles can find their dimensions.
type DecodeFunc func(b []byte, offset int, records *record.Map, logger *slog.Logger) (*record.Record, error)

// Entry is one entry in a dispatch table.
type Entry struct {
	ID     uint16
	Tag    string
	Kind   record.Kind
	Decode DecodeFunc
}

// Table is the dispatch table of one instrument family.  It's not changed
// after it's created.
type Table struct {
	family         Family
	fixedLeaderTag string
	entries        map[uint16]Entry
}

// Family returns the instrument family of the table.
func (t *Table) Family() Family {
	return t.family
}

// FixedLeaderTag returns the tag of the Janus fixed leader, the record that
// drives the configuration descriptors.
func (t *Table) FixedLeaderTag() string {
	return t.fixedLeaderTag
}

// Lookup returns the entry for the given record ID.
func (t *Table) Lookup(id uint16) (Entry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// IDs returns the record IDs in the table in ascending order.
func (t *Table) IDs() []uint16 {
	ids := make([]uint16, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

var workhorseTable = newTable(Workhorse, "")
var sentinelVTable = newTable(SentinelV, "_janus")

// ForFamily returns the dispatch table for the instrument family.
func ForFamily(f Family) *Table {
	if f == SentinelV {
		return sentinelVTable
	}
	return workhorseTable
}

// newTable builds a dispatch table.  The suffix is added to the tags of the
// Janus records.
func newTable(family Family, suffix string) *Table {

	fixedLeaderTag := "fixed_leader" + suffix

	fixedLeaderTable := fixedleader.WorkhorseTable
	if family == SentinelV {
		fixedLeaderTable = fixedleader.SentinelVTable
	}

	janusDimensions := profile.FromFixedLeader(fixedLeaderTag)

	table := Table{
		family:         family,
		fixedLeaderTag: fixedLeaderTag,
		entries:        make(map[uint16]Entry),
	}

	table.add(utils.RecordIDFixedLeader, fixedLeaderTag, record.KindFixedLeader,
		func(b []byte, offset int, records *record.Map, logger *slog.Logger) (*record.Record, error) {
			return fixedleader.GetRecord(b, offset, fixedLeaderTag, record.KindFixedLeader,
				fixedLeaderTable, logger), nil
		})

	variableLeaderTag := "variable_leader" + suffix
	table.add(utils.RecordIDVariableLeader, variableLeaderTag, record.KindVariableLeader,
		func(b []byte, offset int, records *record.Map, logger *slog.Logger) (*record.Record, error) {
			return variableleader.GetRecord(b, offset, variableLeaderTag, logger), nil
		})

	table.addProfile(utils.RecordIDVelocity, "velocity"+suffix, record.KindVelocity,
		fieldtable.Int16, janusDimensions)
	table.addProfile(utils.RecordIDCorrelation, "correlation"+suffix, record.KindCorrelation,
		fieldtable.Uint8, janusDimensions)
	table.addProfile(utils.RecordIDEchoIntensity, "echo_intensity"+suffix, record.KindEchoIntensity,
		fieldtable.Uint8, janusDimensions)
	table.addProfile(utils.RecordIDPercentGood, "percent_good"+suffix, record.KindPercentGood,
		fieldtable.Uint8, janusDimensions)
	table.addProfile(utils.RecordIDStatus, "status"+suffix, record.KindStatus,
		fieldtable.Uint8, janusDimensions)

	bottomTrackTag := "bottom_track" + suffix
	table.add(utils.RecordIDBottomTrack, bottomTrackTag, record.KindBottomTrack,
		func(b []byte, offset int, records *record.Map, logger *slog.Logger) (*record.Record, error) {
			return bottomtrack.GetRecord(b, offset, bottomTrackTag)
		})

	if family != SentinelV {
		return &table
	}

	// The vertical beam.
	const beam5LeaderTag = "fixed_leader_beam5"
	table.add(utils.RecordIDFixedLeaderBeam5, beam5LeaderTag, record.KindFixedLeaderBeam5,
		func(b []byte, offset int, records *record.Map, logger *slog.Logger) (*record.Record, error) {
			return fixedleader.GetRecord(b, offset, beam5LeaderTag, record.KindFixedLeaderBeam5,
				fixedleader.Beam5Table, logger), nil
		})

	table.addProfile(utils.RecordIDVelocityBeam5, "velocity_beam5", record.KindVelocity,
		fieldtable.Int16, profile.FromBeam5Leader(beam5LeaderTag))
	table.addProfile(utils.RecordIDCorrelationBeam5, "correlation_beam5", record.KindCorrelation,
		fieldtable.Uint8, profile.CellsFromFixedLeader(fixedLeaderTag))
	table.addProfile(utils.RecordIDEchoIntensityBeam5, "echo_intensity_beam5", record.KindEchoIntensity,
		fieldtable.Uint8, profile.CellsFromFixedLeader(fixedLeaderTag))

	table.add(utils.RecordIDPercentGoodBeam5, "percent_good_beam5", record.KindPercentGood,
		func(b []byte, offset int, records *record.Map, logger *slog.Logger) (*record.Record, error) {
			return nil, fmt.Errorf("percent_good_beam5 at offset %d: %w", offset, record.ErrUnsupported)
		})

	return &table
}

func (t *Table) add(id uint16, tag string, kind record.Kind, decode DecodeFunc) {
	t.entries[id] = Entry{ID: id, Tag: tag, Kind: kind, Decode: decode}
}

func (t *Table) addProfile(id uint16, tag string, kind record.Kind, typ fieldtable.Type,
	dimensions profile.Dimensions) {

	t.add(id, tag, kind,
		func(b []byte, offset int, records *record.Map, logger *slog.Logger) (*record.Record, error) {
			return profile.GetRecord(b, offset, tag, kind, typ, dimensions, records, logger)
		})
}

// discard is used when the caller doesn't supply a logger.
var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// Dispatch decodes the records at the given address offsets in order.  b
// holds the ensemble up to but not including the checksum.  Records that
// can't be decoded are returned as gaps.  Unknown record IDs are skipped.
func Dispatch(b []byte, offsets []uint16, table *Table, logger *slog.Logger) (*record.Map, []record.Gap) {

	if logger == nil {
		logger = discard
	}

	records := record.NewMap()
	gaps := make([]record.Gap, 0)

	for _, o := range offsets {
		offset := int(o)

		if offset < utils.HeaderLengthBytes || !utils.Available(b, offset, utils.LenRecordID) {
			err := fmt.Errorf("%w - offset %d, ensemble length %d", ErrBadOffset, offset, len(b))
			logger.Debug("bad address offset", "offset", offset, "length", len(b))
			gaps = append(gaps, record.Gap{Offset: offset, Err: err})
			continue
		}

		id := utils.GetUint16(b, offset)

		entry, ok := table.Lookup(id)
		if !ok {
			logger.Debug("skipping unknown record", "id", fmt.Sprintf("0x%04x", id), "offset", offset)
			continue
		}

		r, err := entry.Decode(b, offset, records, logger)
		if err != nil {
			logger.Debug("record not decoded", "tag", entry.Tag, "offset", offset, "error", err)
			gaps = append(gaps, record.Gap{Tag: entry.Tag, ID: id, Offset: offset, Err: err})
			continue
		}

		if err := records.Add(r); err != nil {
			logger.Debug("duplicate record", "tag", entry.Tag, "offset", offset)
			gaps = append(gaps, record.Gap{Tag: entry.Tag, ID: id, Offset: offset, Err: err})
		}
	}

	return records, gaps
}
