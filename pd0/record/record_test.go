package record

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kylelemons/godebug/diff"

	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/matrix"
)

func TestKind(t *testing.T) {
	var testData = []struct {
		kind    Kind
		name    string
		profile bool
	}{
		{KindFixedLeader, "fixed leader", false},
		{KindVariableLeader, "variable leader", false},
		{KindFixedLeaderBeam5, "fixed leader beam 5", false},
		{KindVelocity, "velocity", true},
		{KindCorrelation, "correlation", true},
		{KindEchoIntensity, "echo intensity", true},
		{KindPercentGood, "percent good", true},
		{KindStatus, "status", true},
		{KindBottomTrack, "bottom track", false},
		{Kind(42), "kind 42", false},
	}

	for _, td := range testData {
		if td.kind.String() != td.name {
			t.Errorf("want %s got %s", td.name, td.kind.String())
		}
		if td.kind.IsProfile() != td.profile {
			t.Errorf("%s: want IsProfile %v", td.name, td.profile)
		}
	}
}

// TestMap checks that the map keeps records in the order they were added
// and refuses a second record with the same tag.
func TestMap(t *testing.T) {
	m := NewMap()

	first := &Record{Tag: "fixed_leader", Kind: KindFixedLeader, Offset: 18}
	second := &Record{Tag: "variable_leader", ID: 0x80, Kind: KindVariableLeader, Offset: 77}
	duplicate := &Record{Tag: "fixed_leader", Kind: KindFixedLeader, Offset: 200}

	if err := m.Add(first); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(second); err != nil {
		t.Fatal(err)
	}

	err := m.Add(duplicate)
	if !errors.Is(err, ErrDuplicateRecord) {
		t.Errorf("want ErrDuplicateRecord got %v", err)
	}

	if m.Len() != 2 {
		t.Errorf("want 2 records got %d", m.Len())
	}

	wantTags := []string{"fixed_leader", "variable_leader"}
	if !cmp.Equal(wantTags, m.Tags()) {
		t.Error(cmp.Diff(wantTags, m.Tags()))
	}

	got, ok := m.Get("fixed_leader")
	if !ok {
		t.Fatal("fixed_leader missing")
	}
	if got.Offset != 18 {
		t.Errorf("the first record should be kept, got offset %d", got.Offset)
	}

	if m.Has("velocity") {
		t.Error("velocity should not be present")
	}
}

func TestRecordString(t *testing.T) {

	leader := Record{
		Tag:    "variable_leader",
		Kind:   KindVariableLeader,
		ID:     0x0080,
		Offset: 77,
		Fields: fieldtable.Values{Fields: []fieldtable.Value{
			{Name: "id", Type: fieldtable.Uint16, Raw: 0x80},
			{Name: "pitch", Type: fieldtable.Int16, Raw: 0xff6a},
		}},
	}

	velocity := Record{
		Tag:     "velocity",
		Kind:    KindVelocity,
		ID:      0x0100,
		Offset:  142,
		Profile: matrix.Matrix{{1, -2}, {-32768, 4}},
	}

	const wantLeader = "variable_leader (0x0080, variable leader) at offset 77\n" +
		"id 128\n" +
		"pitch -150\n"

	const wantVelocityInfo = "velocity (0x0100, velocity) at offset 142\n" +
		"2 cells x 2 beams\n"

	const wantVelocityDebug = wantVelocityInfo +
		"  1 {1, -2}\n" +
		"  2 {-32768, 4}\n"

	var testData = []struct {
		description string
		record      Record
		logLevel    slog.Level
		want        string
	}{
		{"leader", leader, slog.LevelInfo, wantLeader},
		{"profile", velocity, slog.LevelInfo, wantVelocityInfo},
		{"profile debug", velocity, slog.LevelDebug, wantVelocityDebug},
	}

	for _, td := range testData {
		got := td.record.String(td.logLevel)
		if got != td.want {
			t.Errorf("%s: %s", td.description, diff.Diff(td.want, got))
		}
	}
}

func TestGapString(t *testing.T) {
	var testData = []struct {
		gap  Gap
		want string
	}{
		{Gap{Tag: "bottom_track", ID: 0x0600, Offset: 464, Err: ErrUnsupported},
			"bottom_track (0x0600) at offset 464: unsupported record type"},
		{Gap{Offset: 2, Err: errors.New("bad offset")},
			"record (0x0000) at offset 2: bad offset"},
	}

	for _, td := range testData {
		if td.gap.String() != td.want {
			t.Errorf("want %q got %q", td.want, td.gap.String())
		}
	}
}
