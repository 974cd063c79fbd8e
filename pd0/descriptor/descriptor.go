// The descriptor package turns the configuration bytes of a fixed leader into
// readable descriptions of the instrument setup, for example "300 kHz",
// "upward-looking" or "earth coordinates".
//
// Each configuration byte is compared with a list of bit patterns written in
// the style of the TRDI manuals, most significant bit first, with "x" marking
// a bit that doesn't matter.  For example "xxxxx010" matches any byte whose
// bottom three bits are 010.  Every pattern that matches contributes its
// label, so one byte usually produces several descriptions.  The patterns
// are compiled into a mask and an expected value when the package is loaded.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/goblimey/go-adcp/pd0/dispatch"
	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/fixedleader"
)

// Descriptor is a description of one aspect of the instrument setup.
type Descriptor struct {
	// Field is the name of the fixed leader field.
	Field string `json:"field"`
	// Pattern is the bit pattern that matched, for example "xxxxx010".
	Pattern string `json:"pattern"`
	// Mask has a 1 for each bit that the pattern cares about.
	Mask uint8 `json:"-"`
	// Value is the value that the masked bits must have.
	Value uint8 `json:"-"`
	// Label describes the setup.
	Label string `json:"label"`
}

// Matches returns true if the byte matches the pattern.
func (d Descriptor) Matches(b uint8) bool {
	return b&d.Mask == d.Value
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s: %s", d.Field, d.Pattern, d.Label)
}

// fields is the order in which the configuration bytes are examined:
// the system configuration, then the sensors, then the coordinate
// transformation.
var fields = []string{
	fixedleader.FieldSystemConfigurationLSB,
	fixedleader.FieldSystemConfigurationMSB,
	fixedleader.FieldSensorSource,
	fixedleader.FieldCoordinateTransformationProcess,
}

// patternTable maps a field name to its patterns, in order.
type patternTable map[string][]Descriptor

var coordinateTransformation = [][2]string{
	{"xxx00xxx", "beam coordinates (no coordinate transformation)"},
	{"xxx01xxx", "instrument coordinates (b1->b2, b4->b3, towards instrument, error velocity)"},
	{"xxx10xxx", "ship coordinates (port->starboard, aft->forward, away from instrument, error velocity)"},
	{"xxx11xxx", "earth coordinates (west->east, south->north, upwards, error velocity)"},
	{"xxxxx1xx", "pitch and roll used in ship or earth transformation"},
	{"xxxxxx1x", "3-beam solution used if one beam is below the correlation threshold"},
	{"xxxxxxx1", "bin mapping was applied"},
}

var sentinelV = mustCompile(map[string][][2]string{
	fixedleader.FieldSystemConfigurationLSB: {
		{"xxxxx010", "Sentinel V100 (300 kHz)"},
		{"xxxxx011", "Sentinel V50 (500 kHz)"},
		{"xxxxx100", "Sentinel V20 (1000 kHz)"},
		{"0xxxxxxx", "downward-looking"},
		{"1xxxxxxx", "upward-looking"},
	},
	fixedleader.FieldSystemConfigurationMSB: {
		{"0100xxxx", "4-beam Janus"},
		{"0101xxxx", "5-beam Janus"},
	},
	fixedleader.FieldSensorSource: {
		{"x1xxxxxx", "speed of sound calculated from depth, salinity, temperature"},
		{"xx1xxxxx", "uses depth sensor"},
		{"xxx1xxxx", "uses transducer heading sensor"},
	},
	fixedleader.FieldCoordinateTransformationProcess: coordinateTransformation,
})

var workhorse = mustCompile(map[string][][2]string{
	fixedleader.FieldSystemConfigurationLSB: {
		{"xxxxx000", "75 kHz system"},
		{"xxxxx001", "150 kHz system"},
		{"xxxxx010", "300 kHz system"},
		{"xxxxx011", "600 kHz system"},
		{"xxxxx100", "1200 kHz system"},
		{"xxxxx101", "2400 kHz system"},
		{"xxxx0xxx", "concave beam pattern"},
		{"xxxx1xxx", "convex beam pattern"},
		{"xx00xxxx", "sensor configuration 1"},
		{"xx01xxxx", "sensor configuration 2"},
		{"xx10xxxx", "sensor configuration 3"},
		{"x0xxxxxx", "transducer head not attached"},
		{"x1xxxxxx", "transducer head attached"},
		{"0xxxxxxx", "downward-looking"},
		{"1xxxxxxx", "upward-looking"},
	},
	fixedleader.FieldSystemConfigurationMSB: {
		{"xxxxxx00", "15 degree beam angle"},
		{"xxxxxx01", "20 degree beam angle"},
		{"xxxxxx10", "30 degree beam angle"},
		{"xxxxxx11", "other beam angle"},
		{"0100xxxx", "4-beam Janus"},
		{"0101xxxx", "5-beam Janus (demod)"},
		{"1111xxxx", "5-beam Janus (2 demod)"},
	},
	fixedleader.FieldSensorSource: {
		{"x1xxxxxx", "speed of sound calculated from depth, salinity, temperature"},
		{"xx1xxxxx", "uses depth sensor"},
		{"xxx1xxxx", "uses transducer heading sensor"},
		{"xxxx1xxx", "uses transducer pitch sensor"},
		{"xxxxx1xx", "uses transducer roll sensor"},
		{"xxxxxx1x", "uses conductivity sensor for salinity"},
		{"xxxxxxx1", "uses transducer temperature sensor"},
	},
	fixedleader.FieldCoordinateTransformationProcess: coordinateTransformation,
})

// Describe returns the descriptors of every pattern matched by the
// configuration fields of the fixed leader, in field order then pattern
// order.  Missing fields are skipped.
func Describe(fixedLeader fieldtable.Values, family dispatch.Family) []Descriptor {

	table := workhorse
	if family == dispatch.SentinelV {
		table = sentinelV
	}

	result := make([]Descriptor, 0)
	for _, field := range fields {
		v, ok := fixedLeader.Uint(field)
		if !ok {
			continue
		}
		for _, d := range table[field] {
			if d.Matches(uint8(v)) {
				result = append(result, d)
			}
		}
	}

	return result
}

// Labels returns just the labels of the descriptors.
func Labels(descriptors []Descriptor) []string {
	labels := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		labels = append(labels, d.Label)
	}
	return labels
}

// Compile converts a pattern such as "xxx01xxx" into a mask and an expected
// value.  The pattern must be eight characters, each '0', '1' or 'x'.
func Compile(pattern string) (mask, value uint8, err error) {
	if len(pattern) != 8 {
		return 0, 0, fmt.Errorf("pattern %q - want 8 characters, got %d", pattern, len(pattern))
	}
	for i, c := range strings.ToLower(pattern) {
		bit := uint8(1) << (7 - i)
		switch c {
		case 'x':
		case '0':
			mask |= bit
		case '1':
			mask |= bit
			value |= bit
		default:
			return 0, 0, fmt.Errorf("pattern %q - illegal character %q", pattern, c)
		}
	}
	return mask, value, nil
}

// mustCompile compiles the pattern tables.  It panics if a pattern is
// illegal.
func mustCompile(source map[string][][2]string) patternTable {
	table := make(patternTable)
	for field, patterns := range source {
		for _, p := range patterns {
			mask, value, err := Compile(p[0])
			if err != nil {
				panic(err)
			}
			table[field] = append(table[field],
				Descriptor{Field: field, Pattern: p[0], Mask: mask, Value: value, Label: p[1]})
		}
	}
	return table
}
