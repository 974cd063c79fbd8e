// The ensemble package decodes a single PD0 ensemble.
//
// An ensemble is the data from one set of pings.  It starts with a header
// (see the header package) giving its length and the positions of its
// records, and ends with a checksum.  The records are self-describing: each
// starts with a two-byte ID which selects a decoder from the dispatch table
// of the instrument family.
//
// Decoding goes header, checksum, address offset table, records.  A failure
// in the header or the checksum rejects the whole ensemble.  A record that
// can't be decoded is reported as a gap and the rest of the ensemble is still
// usable.
package ensemble

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goblimey/go-adcp/pd0/checksum"
	"github.com/goblimey/go-adcp/pd0/descriptor"
	"github.com/goblimey/go-adcp/pd0/dispatch"
	"github.com/goblimey/go-adcp/pd0/header"
	"github.com/goblimey/go-adcp/pd0/matrix"
	"github.com/goblimey/go-adcp/pd0/record"
	"github.com/goblimey/go-adcp/pd0/utils"
	"github.com/goblimey/go-adcp/pd0/variableleader"
)

// ErrNoRecord is returned by the accessors when the ensemble doesn't
// contain the record.
var ErrNoRecord = errors.New("record not present")

// Ensemble is a decoded ensemble.
type Ensemble struct {
	// Raw is the ensemble including the checksum.
	Raw []byte `json:"-"`

	// Family is the instrument family used to decode the records.
	Family dispatch.Family `json:"family"`

	// Header is the decoded header.
	Header *header.Header `json:"header"`

	// Records holds the decoded records in the order they were found.
	Records *record.Map `json:"records"`

	// Descriptors describe the instrument setup given by the fixed leader.
	Descriptors []descriptor.Descriptor `json:"descriptors"`

	// Gaps lists the records that could not be decoded.
	Gaps []record.Gap `json:"gaps"`

	// Valid is true if the header and checksum are good.
	Valid bool `json:"valid"`

	// logLevel controls String.
	logLevel slog.Level
}

// Decode decodes the ensemble at the start of b using the dispatch table.
// Any bytes after the checksum are ignored.  If the header or the checksum
// is bad it returns an error wrapping one of header.ErrTruncatedHeader,
// header.ErrTruncatedAddressTable, checksum.ErrTruncatedChecksum or
// checksum.ErrChecksumMismatch.  Diagnostics go to the logger, which may
// be nil.
func Decode(b []byte, table *dispatch.Table, logLevel slog.Level, logger *slog.Logger) (*Ensemble, error) {

	h, err := header.GetFixedHeader(b, logLevel)
	if err != nil {
		return nil, err
	}

	numberOfBytes := int(h.NumberOfBytes)
	if err := checksum.Check(b, numberOfBytes); err != nil {
		return nil, err
	}

	// The header and the records are within the counted bytes.
	counted := b[:numberOfBytes]

	offsets, err := header.GetAddressOffsets(counted, int(h.NumberOfDataTypes))
	if err != nil {
		return nil, err
	}
	h.AddressOffsets = offsets

	records, gaps := dispatch.Dispatch(counted, offsets, table, logger)

	e := Ensemble{
		Raw:      b[:numberOfBytes+utils.ChecksumLengthBytes],
		Family:   table.Family(),
		Header:   h,
		Records:  records,
		Gaps:     gaps,
		Valid:    true,
		logLevel: logLevel,
	}

	e.Descriptors = make([]descriptor.Descriptor, 0)
	if fl, ok := records.Get(table.FixedLeaderTag()); ok {
		e.Descriptors = descriptor.Describe(fl.Fields, table.Family())
	}

	return &e, nil
}

// Len returns the length of the ensemble including the checksum.
func (e *Ensemble) Len() int {
	return len(e.Raw)
}

// Record returns the record with the given tag.
func (e *Ensemble) Record(tag string) (*record.Record, bool) {
	return e.Records.Get(tag)
}

// Profile returns the matrix of the profile record with the given tag.
func (e *Ensemble) Profile(tag string) (matrix.Matrix, error) {
	r, ok := e.Records.Get(tag)
	if !ok || !r.Kind.IsProfile() {
		return nil, fmt.Errorf("%w - %s", ErrNoRecord, tag)
	}
	return r.Profile, nil
}

// EnsembleNumber returns the ensemble number from the variable leader.
func (e *Ensemble) EnsembleNumber() (uint64, error) {
	vl, err := e.variableLeader()
	if err != nil {
		return 0, err
	}
	n, ok := vl.Fields.Uint("ensemble_number")
	if !ok {
		return 0, fmt.Errorf("%w - ensemble_number", ErrNoRecord)
	}
	return n, nil
}

// Time returns the time of the ensemble from the variable leader's clock.
func (e *Ensemble) Time() (time.Time, error) {
	vl, err := e.variableLeader()
	if err != nil {
		return time.Time{}, err
	}
	return variableleader.Timestamp(vl.Fields)
}

func (e *Ensemble) variableLeader() (*record.Record, error) {
	tag := "variable_leader"
	if e.Family == dispatch.SentinelV {
		tag = "variable_leader_janus"
	}
	vl, ok := e.Records.Get(tag)
	if !ok {
		return nil, fmt.Errorf("%w - %s", ErrNoRecord, tag)
	}
	return vl, nil
}

// String returns a readable version of the ensemble.
func (e *Ensemble) String() string {
	var sb strings.Builder

	sb.WriteString(e.Header.String())

	if t, err := e.Time(); err == nil {
		sb.WriteString(fmt.Sprintf("time %s\n", t.Format(utils.DateLayout)))
	}

	sb.WriteString(fmt.Sprintf("records: %s\n", strings.Join(e.Records.Tags(), ", ")))

	if len(e.Descriptors) > 0 {
		sb.WriteString("setup:\n")
		for _, d := range e.Descriptors {
			sb.WriteString(fmt.Sprintf("  %s\n", d.Label))
		}
	}

	for _, g := range e.Gaps {
		sb.WriteString(fmt.Sprintf("gap: %s\n", g.String()))
	}

	if e.logLevel == slog.LevelDebug {
		sb.WriteString(e.Records.String(e.logLevel))
		sb.WriteString(utils.HexDump(e.Raw))
	}

	return sb.String()
}
