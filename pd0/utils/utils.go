// the utils package contains general-purpose values and functions for the PD0
// software.
package utils

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// SyncByte is the value of each of the two bytes that start a PD0 ensemble.
const SyncByte byte = 0x7f

// SyncMarker is the two byte sequence that starts a PD0 ensemble.  The first
// byte is the header ID and the second is the data source ID, both 0x7f.
var SyncMarker = []byte{SyncByte, SyncByte}

// LenSyncMarker is the length of the sync marker in bytes.
const LenSyncMarker = 2

// HeaderLengthBytes is the length of the fixed part of the ensemble header:
// header ID, data source ID, a 2-byte ensemble length, a spare byte and the
// number of data types.
const HeaderLengthBytes = 6

// LenAddressOffset is the length of each entry in the address offset table.
const LenAddressOffset = 2

// ChecksumLengthBytes is the length of the checksum that ends an ensemble.
const ChecksumLengthBytes = 2

// LenRecordID is the length of the ID that starts each record in the
// ensemble.
const LenRecordID = 2

// Record IDs.  Sentinel V ensembles use the same IDs for the Janus (four
// slanted beams) records and add some of their own for the vertical beam.
const (
	RecordIDFixedLeader        = 0x0000
	RecordIDVariableLeader     = 0x0080
	RecordIDVelocity           = 0x0100
	RecordIDCorrelation        = 0x0200
	RecordIDEchoIntensity      = 0x0300
	RecordIDPercentGood        = 0x0400
	RecordIDStatus             = 0x0500
	RecordIDBottomTrack        = 0x0600
	RecordIDVelocityBeam5      = 0x0a00
	RecordIDCorrelationBeam5   = 0x0b00
	RecordIDEchoIntensityBeam5 = 0x0c00
	RecordIDPercentGoodBeam5   = 0x0d00
	RecordIDFixedLeaderBeam5   = 0x0f01
)

// BadVelocity is the value that the instrument writes into a velocity cell
// when it could not measure the velocity.  It's passed through unchanged.
const BadVelocity = -32768

// DateLayout defines the layout of dates when they are displayed.  It
// produces "yyyy-mm-dd hh:mm:ss.hh timeshift timezone", for example
// "2023-05-12 00:00:05.25 +0000 UTC".
const DateLayout = "2006-01-02 15:04:05.99 -0700 MST"

// GetUint16 gets the little-endian unsigned 16-bit value at the given position
// in the slice.  The caller must check that there are enough bytes.
func GetUint16(b []byte, pos int) uint16 {
	return binary.LittleEndian.Uint16(b[pos : pos+2])
}

// GetUint32 gets the little-endian unsigned 32-bit value at the given position.
func GetUint32(b []byte, pos int) uint32 {
	return binary.LittleEndian.Uint32(b[pos : pos+4])
}

// GetUint64 gets the little-endian unsigned 64-bit value at the given position.
func GetUint64(b []byte, pos int) uint64 {
	return binary.LittleEndian.Uint64(b[pos : pos+8])
}

// PutUint16 writes v into the slice at the given position, little-endian.
func PutUint16(b []byte, pos int, v uint16) {
	binary.LittleEndian.PutUint16(b[pos:pos+2], v)
}

// Available returns true if the slice holds length bytes starting at pos.
func Available(b []byte, pos, length int) bool {
	return pos >= 0 && length >= 0 && pos+length <= len(b)
}

// IsSyncMarker returns true if the slice holds a sync marker at pos.
func IsSyncMarker(b []byte, pos int) bool {
	return Available(b, pos, LenSyncMarker) &&
		b[pos] == SyncByte && b[pos+1] == SyncByte
}

// HexDump returns the bytes as rows of 16 hex values, each row prefixed with
// its offset, similar to the output of "od -A x -t x1".
func HexDump(b []byte) string {
	var sb strings.Builder
	for row := 0; row < len(b); row += 16 {
		end := row + 16
		if end > len(b) {
			end = len(b)
		}
		sb.WriteString(fmt.Sprintf("%08x ", row))
		for i := row; i < end; i++ {
			sb.WriteString(fmt.Sprintf(" %02x", b[i]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
