// The record package defines the decoded records of a PD0 ensemble and the
// ordered map that holds them.
//
// A record is either a set of scalar fields (the leaders) or a profile, a
// matrix of values per depth cell and beam (velocity, correlation and so
// on).  Its Kind says which.  Its Tag names it in the record map, for
// example "fixed_leader" or, in a Sentinel V ensemble, "fixed_leader_janus".
package record

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/matrix"
)

// ErrMissingDependency is returned when a profile record is found but the
// record that gives its dimensions (the fixed leader) has not been decoded
// earlier in the same ensemble.
var ErrMissingDependency = errors.New("missing dependency")

// ErrUnsupported is returned for a record type that's recognised but can't
// be decoded, such as bottom track.
var ErrUnsupported = errors.New("unsupported record type")

// ErrDuplicateRecord is returned when an ensemble contains a second record
// with the same tag.  The first one is kept.
var ErrDuplicateRecord = errors.New("duplicate record")

// Kind says what sort of payload a record has.
type Kind int

// The record kinds.
const (
	KindFixedLeader Kind = iota
	KindVariableLeader
	KindFixedLeaderBeam5
	KindVelocity
	KindCorrelation
	KindEchoIntensity
	KindPercentGood
	KindStatus
	KindBottomTrack
)

func (k Kind) String() string {
	switch k {
	case KindFixedLeader:
		return "fixed leader"
	case KindVariableLeader:
		return "variable leader"
	case KindFixedLeaderBeam5:
		return "fixed leader beam 5"
	case KindVelocity:
		return "velocity"
	case KindCorrelation:
		return "correlation"
	case KindEchoIntensity:
		return "echo intensity"
	case KindPercentGood:
		return "percent good"
	case KindStatus:
		return "status"
	case KindBottomTrack:
		return "bottom track"
	default:
		return fmt.Sprintf("kind %d", int(k))
	}
}

// IsProfile returns true for the kinds whose payload is a matrix.
func (k Kind) IsProfile() bool {
	switch k {
	case KindVelocity, KindCorrelation, KindEchoIntensity, KindPercentGood, KindStatus:
		return true
	default:
		return false
	}
}

// Record is a decoded record.
type Record struct {
	// Tag is the name of the record in the record map.
	Tag string `json:"tag"`

	// Kind is the shape of the payload.
	Kind Kind `json:"kind"`

	// ID is the two-byte ID that starts the record.
	ID uint16 `json:"id"`

	// Offset is the position of the record in the ensemble.
	Offset int `json:"offset"`

	// Fields holds the scalar fields.  Profile records have just the ID.
	Fields fieldtable.Values `json:"fields"`

	// Profile holds the matrix of a profile record, nil otherwise.
	Profile matrix.Matrix `json:"profile,omitempty"`
}

// String returns a readable version of the record.  At debug level the
// profile is included.
func (r *Record) String(logLevel slog.Level) string {
	display := fmt.Sprintf("%s (0x%04x, %s) at offset %d\n", r.Tag, r.ID, r.Kind, r.Offset)
	if r.Kind.IsProfile() {
		display += fmt.Sprintf("%d cells x %d beams\n", r.Profile.Cells(), r.Profile.Beams())
		if logLevel == slog.LevelDebug {
			display += r.Profile.String()
		}
		return display
	}
	return display + r.Fields.String()
}

// Gap records a record that could not be decoded.  Gaps don't invalidate the
// ensemble.
type Gap struct {
	Tag    string `json:"tag"`
	ID     uint16 `json:"id"`
	Offset int    `json:"offset"`
	Err    error  `json:"-"`
}

func (g Gap) String() string {
	name := g.Tag
	if name == "" {
		name = "record"
	}
	return fmt.Sprintf("%s (0x%04x) at offset %d: %v", name, g.ID, g.Offset, g.Err)
}

// Map holds the records of an ensemble keyed by tag, in the order that they
// were found.
type Map struct {
	Records []*Record
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{Records: make([]*Record, 0)}
}

// Add adds the record.  If there is already a record with the same tag the
// map is unchanged and an error wrapping ErrDuplicateRecord is returned.
func (m *Map) Add(r *Record) error {
	if _, ok := m.Get(r.Tag); ok {
		return fmt.Errorf("%w - %s", ErrDuplicateRecord, r.Tag)
	}
	m.Records = append(m.Records, r)
	return nil
}

// Get returns the record with the given tag.
func (m *Map) Get(tag string) (*Record, bool) {
	for _, r := range m.Records {
		if r.Tag == tag {
			return r, true
		}
	}
	return nil, false
}

// Has returns true if the map contains the tag.
func (m *Map) Has(tag string) bool {
	_, ok := m.Get(tag)
	return ok
}

// Tags returns the tags in order.
func (m *Map) Tags() []string {
	tags := make([]string, 0, len(m.Records))
	for _, r := range m.Records {
		tags = append(tags, r.Tag)
	}
	return tags
}

// Len returns the number of records.
func (m *Map) Len() int {
	return len(m.Records)
}

// String returns a readable version of all the records.
func (m *Map) String(logLevel slog.Level) string {
	var sb strings.Builder
	for _, r := range m.Records {
		sb.WriteString(r.String(logLevel))
	}
	return sb.String()
}
