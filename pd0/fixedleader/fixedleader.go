// The fixedleader package handles the fixed leader records of a PD0 ensemble.
// The fixed leader describes how the instrument was set up: the number of
// beams and depth cells, the cell length, the coordinate system and so on.
// It changes only when the instrument is reconfigured.  The profile records
// that follow it in the ensemble get their dimensions from it.
//
// Workhorse and Sentinel V fixed leaders have the same layout except that
// the Workhorse has a CPU board serial number at offset 42 where the
// Sentinel V has a spare field, and the Sentinel V has an extra spare byte
// at the end.  Sentinel V instruments also send a second fixed leader for
// the vertical beam (beam 5).
package fixedleader

import (
	"fmt"
	"log/slog"

	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/record"
)

// Field names used elsewhere.
const (
	FieldNumberOfBeams                   = "number_of_beams"
	FieldNumberOfCells                   = "number_of_cells"
	FieldSystemConfigurationLSB          = "system_configuration_LSB"
	FieldSystemConfigurationMSB          = "system_configuration_MSB"
	FieldSensorSource                    = "sensor_source"
	FieldCoordinateTransformationProcess = "coordinate_transformation_process"
)

// WorkhorseTable is the layout of the Workhorse fixed leader.
var WorkhorseTable = fieldtable.Table{
	{Name: "id", Type: fieldtable.Uint16, Offset: 0},
	{Name: "cpu_firmware_version", Type: fieldtable.Uint8, Offset: 2},
	{Name: "cpu_firmware_revision", Type: fieldtable.Uint8, Offset: 3},
	{Name: FieldSystemConfigurationLSB, Type: fieldtable.Uint8, Offset: 4},
	{Name: FieldSystemConfigurationMSB, Type: fieldtable.Uint8, Offset: 5},
	{Name: "simulation_data_flag", Type: fieldtable.Uint8, Offset: 6},
	{Name: "lag_length", Type: fieldtable.Uint8, Offset: 7},
	{Name: FieldNumberOfBeams, Type: fieldtable.Uint8, Offset: 8},
	{Name: FieldNumberOfCells, Type: fieldtable.Uint8, Offset: 9},
	{Name: "pings_per_ensemble", Type: fieldtable.Uint16, Offset: 10},
	{Name: "depth_cell_length", Type: fieldtable.Uint16, Offset: 12},
	{Name: "blank_after_transmit", Type: fieldtable.Uint16, Offset: 14},
	{Name: "signal_processing_mode", Type: fieldtable.Uint8, Offset: 16},
	{Name: "low_correlation_threshold", Type: fieldtable.Uint8, Offset: 17},
	{Name: "number_of_code_repetitions", Type: fieldtable.Uint8, Offset: 18},
	{Name: "minimum_percentage_water_profile_pings", Type: fieldtable.Uint8, Offset: 19},
	{Name: "error_velocity_threshold", Type: fieldtable.Uint16, Offset: 20},
	{Name: "minutes", Type: fieldtable.Uint8, Offset: 22},
	{Name: "seconds", Type: fieldtable.Uint8, Offset: 23},
	{Name: "hundredths", Type: fieldtable.Uint8, Offset: 24},
	{Name: FieldCoordinateTransformationProcess, Type: fieldtable.Uint8, Offset: 25},
	{Name: "heading_alignment", Type: fieldtable.Uint16, Offset: 26},
	{Name: "heading_bias", Type: fieldtable.Uint16, Offset: 28},
	{Name: FieldSensorSource, Type: fieldtable.Uint8, Offset: 30},
	{Name: "sensor_available", Type: fieldtable.Uint8, Offset: 31},
	{Name: "bin_1_distance", Type: fieldtable.Uint16, Offset: 32},
	{Name: "transmit_pulse_length", Type: fieldtable.Uint16, Offset: 34},
	{Name: "starting_depth_cell", Type: fieldtable.Uint8, Offset: 36},
	{Name: "ending_depth_cell", Type: fieldtable.Uint8, Offset: 37},
	{Name: "false_target_threshold", Type: fieldtable.Uint8, Offset: 38},
	{Name: "spare_39", Type: fieldtable.Uint8, Offset: 39},
	{Name: "transmit_lag_distance", Type: fieldtable.Uint16, Offset: 40},
	{Name: "cpu_board_serial_number", Type: fieldtable.Uint64, Offset: 42},
	{Name: "system_bandwidth", Type: fieldtable.Uint16, Offset: 50},
	{Name: "system_power", Type: fieldtable.Uint8, Offset: 52},
	{Name: "spare_53", Type: fieldtable.Uint8, Offset: 53},
	{Name: "serial_number", Type: fieldtable.Uint32, Offset: 54},
	{Name: "beam_angle", Type: fieldtable.Uint8, Offset: 58},
}

// SentinelVTable is the layout of the Sentinel V fixed leader for the four
// Janus beams.
var SentinelVTable = WorkhorseTable.With(
	fieldtable.Field{Name: "spare_42", Type: fieldtable.Uint64, Offset: 42},
	fieldtable.Field{Name: "spare_59", Type: fieldtable.Uint8, Offset: 59},
)

// Beam5Table is the layout of the Sentinel V fixed leader for the vertical
// beam.  Bytes 18-29 are not documented.
var Beam5Table = fieldtable.Table{
	{Name: "id", Type: fieldtable.Uint16, Offset: 0},
	{Name: FieldNumberOfCells, Type: fieldtable.Uint16, Offset: 2},
	{Name: "pings_per_ensemble", Type: fieldtable.Uint16, Offset: 4},
	{Name: "depth_cell_length", Type: fieldtable.Uint16, Offset: 6},
	{Name: "bin_1_distance", Type: fieldtable.Uint16, Offset: 8},
	{Name: "vertical_mode", Type: fieldtable.Uint16, Offset: 10},
	{Name: "transmit_pulse_length", Type: fieldtable.Uint16, Offset: 12},
	{Name: "vertical_lag_length", Type: fieldtable.Uint16, Offset: 14},
	{Name: "transmit_code_elements", Type: fieldtable.Uint16, Offset: 16},
	{Name: "ping_offset_time", Type: fieldtable.Uint16, Offset: 30},
}

// GetRecord decodes a fixed leader at the given offset using the given table.
func GetRecord(b []byte, offset int, tag string, kind record.Kind,
	table fieldtable.Table, logger *slog.Logger) *record.Record {

	values := fieldtable.Decode(b, offset, table, logger)
	id, _ := values.Uint("id")

	r := record.Record{
		Tag:    tag,
		Kind:   kind,
		ID:     uint16(id),
		Offset: offset,
		Fields: values,
	}

	return &r
}

// Dimensions returns the number of depth cells and beams given by a Janus
// fixed leader.
func Dimensions(fl *record.Record) (cells, beams int, err error) {
	c, okCells := fl.Fields.Uint(FieldNumberOfCells)
	b, okBeams := fl.Fields.Uint(FieldNumberOfBeams)
	if !okCells || !okBeams {
		return 0, 0, fmt.Errorf("%w - %s has no cell or beam count", record.ErrMissingDependency, fl.Tag)
	}
	return int(c), int(b), nil
}

// Beam5Cells returns the number of depth cells given by a beam 5 fixed
// leader.
func Beam5Cells(fl *record.Record) (int, error) {
	c, ok := fl.Fields.Uint(FieldNumberOfCells)
	if !ok {
		return 0, fmt.Errorf("%w - %s has no cell count", record.ErrMissingDependency, fl.Tag)
	}
	return int(c), nil
}
