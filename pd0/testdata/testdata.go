// The testdata package creates PD0 ensembles for use in tests.  The
// ensembles are laid out as real instruments lay them out: header, address
// offset table, fixed leader, variable leader, profiles, two reserved bytes
// and the checksum.  The payload never contains the byte 0x7f, so the only
// sync markers in a stream of test ensembles are the ones that start them.
// Overwrite, WithChecksum, MarkerAtEnd and WorkhorseEnsembleWithLength make
// ensembles that break that rule.
package testdata

import (
	"github.com/goblimey/go-adcp/pd0/checksum"
	"github.com/goblimey/go-adcp/pd0/fieldtable"
	"github.com/goblimey/go-adcp/pd0/fixedleader"
	"github.com/goblimey/go-adcp/pd0/header"
	"github.com/goblimey/go-adcp/pd0/matrix"
	"github.com/goblimey/go-adcp/pd0/utils"
	"github.com/goblimey/go-adcp/pd0/variableleader"
)

// Configuration bytes used in the test fixed leaders.
const (
	// 300 kHz, convex, sensor configuration 1, head attached, upward-looking.
	WorkhorseSystemConfigurationLSB = 0xca
	// 30 degree beam angle, 4-beam Janus.
	WorkhorseSystemConfigurationMSB = 0x42
	// Sentinel V100 (300 kHz), upward-looking.
	SentinelVSystemConfigurationLSB = 0x82
	// 5-beam Janus.
	SentinelVSystemConfigurationMSB = 0x50
	// Earth coordinates, pitch and roll used, 3-beam solution, bin mapping.
	CoordinateTransformationProcess = 0x1f
	// Speed of sound calculated, depth sensor, heading sensor, roll sensor,
	// temperature sensor.
	SensorSource = 0x75
)

// LenReserved is the number of reserved bytes before the checksum.
const LenReserved = 2

// FixedLeader returns a fixed leader record.  The Workhorse table is used
// unless sentinelV is true.
func FixedLeader(cells, beams int, sentinelV bool) []byte {
	table := fixedleader.WorkhorseTable
	lsb, msb := WorkhorseSystemConfigurationLSB, WorkhorseSystemConfigurationMSB
	if sentinelV {
		table = fixedleader.SentinelVTable
		lsb, msb = SentinelVSystemConfigurationLSB, SentinelVSystemConfigurationMSB
	}

	values := fieldtable.Build(table, map[string]uint64{
		"id":                                utils.RecordIDFixedLeader,
		"cpu_firmware_version":              51,
		"cpu_firmware_revision":             28,
		"system_configuration_LSB":          uint64(lsb),
		"system_configuration_MSB":          uint64(msb),
		"lag_length":                        13,
		"number_of_beams":                   uint64(beams),
		"number_of_cells":                   uint64(cells),
		"pings_per_ensemble":                60,
		"depth_cell_length":                 200,
		"blank_after_transmit":              176,
		"signal_processing_mode":            1,
		"low_correlation_threshold":         64,
		"number_of_code_repetitions":        5,
		"error_velocity_threshold":          2000,
		"coordinate_transformation_process": CoordinateTransformationProcess,
		"sensor_source":                     SensorSource,
		"sensor_available":                  0x3d,
		"bin_1_distance":                    408,
		"transmit_pulse_length":             452,
		"starting_depth_cell":               1,
		"ending_depth_cell":                 uint64(cells),
		"false_target_threshold":            50,
		"transmit_lag_distance":             49,
		"cpu_board_serial_number":           0x0102030405060708,
		"system_bandwidth":                  1,
		"serial_number":                     12345,
		"beam_angle":                        20,
	})

	return encode(table, values)
}

// Beam5Leader returns a Sentinel V fixed leader for the vertical beam.
func Beam5Leader(cells int) []byte {
	values := fieldtable.Build(fixedleader.Beam5Table, map[string]uint64{
		"id":                    utils.RecordIDFixedLeaderBeam5,
		"number_of_cells":       uint64(cells),
		"pings_per_ensemble":    30,
		"depth_cell_length":     100,
		"bin_1_distance":        250,
		"vertical_mode":         1,
		"transmit_pulse_length": 200,
	})
	return encode(fixedleader.Beam5Table, values)
}

// VariableLeader returns a variable leader.  The clock reads
// 2023-05-12 10:20:30.25 UTC.
func VariableLeader(ensembleNumber uint16) []byte {
	values := fieldtable.Build(variableleader.Table, map[string]uint64{
		"id":                  utils.RecordIDVariableLeader,
		"ensemble_number":     uint64(ensembleNumber),
		"rtc_year":            23,
		"rtc_month":           5,
		"rtc_day":             12,
		"rtc_hour":            10,
		"rtc_minute":          20,
		"rtc_second":          30,
		"rtc_hundredths":      25,
		"speed_of_sound":      1500,
		"depth_of_transducer": 105,
		"heading":             12345,
		"pitch":               uint64(0xff6a), // -150
		"roll":                25,
		"salinity":            35,
		"temperature":         1234,
		"transmit_current":    88,
		"transmit_voltage":    140,
		"pressure":            100000,
		"pressure_variance":   12,
		"rtc_y2k_century":     20,
		"rtc_y2k_year":        23,
		"rtc_y2k_month":       5,
		"rtc_y2k_day":         12,
		"rtc_y2k_hour":        10,
		"rtc_y2k_minute":      20,
		"rtc_y2k_seconds":     30,
		"rtc_y2k_hundredths":  25,
	})
	return encode(variableleader.Table, values)
}

// ProfileMatrix returns the matrix that Profile puts in a record.  The
// values depend on the seed, the cell and the beam.
func ProfileMatrix(cells, beams int, t fieldtable.Type, seed int) matrix.Matrix {
	m := make(matrix.Matrix, cells)
	for cell := range m {
		m[cell] = make([]int64, beams)
		for beam := range m[cell] {
			v := int64(seed + cell*beams + beam)
			if t == fieldtable.Int16 {
				// Some negative velocities.
				v = (v*37)%2000 - 500
				if byte(v) == utils.SyncByte {
					v--
				}
			} else {
				v = v % 100
			}
			m[cell][beam] = v
		}
	}
	return m
}

// Profile returns a profile record with the given ID.
func Profile(id uint16, cells, beams int, t fieldtable.Type, seed int) []byte {
	m := ProfileMatrix(cells, beams, t, seed)
	b := make([]byte, utils.LenRecordID+matrix.Len(cells, beams, t))
	utils.PutUint16(b, 0, id)
	if err := matrix.Encode(b, utils.LenRecordID, m, t); err != nil {
		panic(err)
	}
	return b
}

// Build assembles an ensemble from the given records, which must each start
// with their ID.  It adds the header, the reserved bytes and the checksum.
func Build(records ...[]byte) []byte {
	return BuildWithSource(utils.SyncByte, records...)
}

// BuildWithSource is Build with a given data source ID.
func BuildWithSource(dataSource byte, records ...[]byte) []byte {

	lenHeader := utils.HeaderLengthBytes + len(records)*utils.LenAddressOffset

	offsets := make([]uint16, len(records))
	pos := lenHeader
	for i, r := range records {
		offsets[i] = uint16(pos)
		pos += len(r)
	}
	numberOfBytes := pos + LenReserved

	b := make([]byte, numberOfBytes, numberOfBytes+utils.ChecksumLengthBytes)
	h := header.New(utils.SyncByte, dataSource, uint16(numberOfBytes), 0, offsets, 0)
	h.Encode(b)

	pos = lenHeader
	for _, r := range records {
		copy(b[pos:], r)
		// Keep the IDs but remove any 0x7f from the payload.
		for i := pos + utils.LenRecordID; i < pos+len(r); i++ {
			if b[i] == utils.SyncByte {
				b[i]--
			}
		}
		pos += len(r)
	}

	return seal(b)
}

// Overwrite returns a copy of the ensemble with the given bytes written at
// pos and the checksum recalculated.  Unlike the rest of the package it can
// put 0x7f into the payload.
func Overwrite(ensemble []byte, pos int, bytes ...byte) []byte {
	numberOfBytes := int(utils.GetUint16(ensemble, 2))
	b := make([]byte, numberOfBytes, numberOfBytes+utils.ChecksumLengthBytes)
	copy(b, ensemble)
	copy(b[pos:], bytes)
	b[numberOfBytes-1] = 0
	return seal(b)
}

// seal adds the checksum to b, first adjusting the last reserved byte until
// the checksum contains no 0x7f.
func seal(b []byte) []byte {
	for {
		sum := checksum.Calculate(b)
		if byte(sum) != utils.SyncByte && byte(sum>>8) != utils.SyncByte {
			break
		}
		b[len(b)-1]++
	}

	return checksum.Append(b)
}

// WorkhorseEnsemble returns a Workhorse ensemble with a fixed leader, a
// variable leader, velocity, correlation, echo intensity and percent good.
// With 40 cells and 4 beams it's 954 bytes long.
func WorkhorseEnsemble(ensembleNumber uint16, cells, beams int) []byte {
	return Build(workhorseRecords(ensembleNumber, cells, beams)...)
}

// WorkhorseEnsembleWithLength is WorkhorseEnsemble with an extra record
// that has an unknown ID, sized so that the low byte of the number of
// bytes in the header is lowByte.  With lowByte 0x7f the ensemble starts
// with three 0x7f bytes.
func WorkhorseEnsembleWithLength(ensembleNumber uint16, cells, beams int, lowByte byte) []byte {
	records := workhorseRecords(ensembleNumber, cells, beams)

	numberOfBytes := utils.HeaderLengthBytes + len(records)*utils.LenAddressOffset + LenReserved
	for _, r := range records {
		numberOfBytes += len(r)
	}

	// The padding record adds its address offset and itself.
	padding := int(byte(int(lowByte)-numberOfBytes-utils.LenAddressOffset-utils.LenRecordID)) +
		utils.LenRecordID
	pad := make([]byte, padding)
	utils.PutUint16(pad, 0, UnknownRecordID)

	return Build(append(records, pad)...)
}

// UnknownRecordID is a record ID that neither instrument family knows.
const UnknownRecordID = 0x1234

func workhorseRecords(ensembleNumber uint16, cells, beams int) [][]byte {
	seed := int(ensembleNumber)
	return [][]byte{
		FixedLeader(cells, beams, false),
		VariableLeader(ensembleNumber),
		Profile(utils.RecordIDVelocity, cells, beams, fieldtable.Int16, seed),
		Profile(utils.RecordIDCorrelation, cells, beams, fieldtable.Uint8, seed+1),
		Profile(utils.RecordIDEchoIntensity, cells, beams, fieldtable.Uint8, seed+2),
		Profile(utils.RecordIDPercentGood, cells, beams, fieldtable.Uint8, seed+3),
	}
}

// SentinelVEnsemble returns a Sentinel V ensemble with the Janus records
// and the vertical beam fixed leader, velocity, correlation and echo
// intensity.  The vertical beam has beam5Cells cells.
func SentinelVEnsemble(ensembleNumber uint16, cells, beams, beam5Cells int) []byte {
	seed := int(ensembleNumber)
	return Build(
		FixedLeader(cells, beams, true),
		VariableLeader(ensembleNumber),
		Profile(utils.RecordIDVelocity, cells, beams, fieldtable.Int16, seed),
		Profile(utils.RecordIDCorrelation, cells, beams, fieldtable.Uint8, seed+1),
		Profile(utils.RecordIDEchoIntensity, cells, beams, fieldtable.Uint8, seed+2),
		Profile(utils.RecordIDPercentGood, cells, beams, fieldtable.Uint8, seed+3),
		Beam5Leader(beam5Cells),
		Profile(utils.RecordIDVelocityBeam5, beam5Cells, 1, fieldtable.Int16, seed+4),
		Profile(utils.RecordIDCorrelationBeam5, cells, 1, fieldtable.Uint8, seed+5),
		Profile(utils.RecordIDEchoIntensityBeam5, cells, 1, fieldtable.Uint8, seed+6),
	)
}

// Stream concatenates ensembles.
func Stream(ensembles ...[]byte) []byte {
	result := make([]byte, 0)
	for _, e := range ensembles {
		result = append(result, e...)
	}
	return result
}

// WithChecksum returns a copy of the ensemble with the bytes of its
// checksum replaced.
func WithChecksum(ensemble []byte, low, high byte) []byte {
	result := make([]byte, len(ensemble))
	copy(result, ensemble)
	numberOfBytes := int(utils.GetUint16(result, 2))
	result[numberOfBytes] = low
	result[numberOfBytes+1] = high
	return result
}

// MarkerAtEnd returns a copy of the ensemble with a sync marker made of its
// last reserved byte and the low byte of its checksum.  The first reserved
// byte is chosen to make the checksum come out that way, so the ensemble is
// still valid.
func MarkerAtEnd(ensemble []byte) []byte {
	numberOfBytes := int(utils.GetUint16(ensemble, 2))
	b := make([]byte, numberOfBytes, numberOfBytes+utils.ChecksumLengthBytes)
	copy(b, ensemble)
	b[numberOfBytes-1] = utils.SyncByte
	for v := 0; v < 256; v++ {
		b[numberOfBytes-LenReserved] = byte(v)
		if byte(checksum.Calculate(b)) == utils.SyncByte {
			break
		}
	}
	return checksum.Append(b)
}

// Corrupt returns a copy of the ensemble with one payload byte changed so
// that the checksum fails.  The new byte is not 0x7f.
func Corrupt(ensemble []byte, pos int) []byte {
	result := make([]byte, len(ensemble))
	copy(result, ensemble)
	if result[pos] == 0 {
		result[pos] = 1
	} else {
		result[pos] = 0
	}
	return result
}

func encode(table fieldtable.Table, values fieldtable.Values) []byte {
	b := make([]byte, table.Size())
	if err := fieldtable.Encode(b, 0, table, values); err != nil {
		panic(err)
	}
	return b
}
