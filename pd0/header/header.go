// The header package handles the header that starts every PD0 ensemble.
package header

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goblimey/go-adcp/pd0/utils"
)

// ErrTruncatedHeader is returned when there are too few bytes to hold the
// six-byte fixed part of the header.
var ErrTruncatedHeader = errors.New("truncated header")

// ErrTruncatedAddressTable is returned when the address offset table runs
// past the end of the data.
var ErrTruncatedAddressTable = errors.New("truncated address offset table")

// Header holds the header of a PD0 ensemble.
//
// The header is:
//
//	byte 0     header ID, always 0x7f
//	byte 1     data source ID, 0x7f for data from the instrument
//	bytes 2-3  number of bytes in the ensemble, not counting the checksum
//	byte 4     spare
//	byte 5     number of data types
//	bytes 6... one two-byte address offset per data type
//
// All multi-byte values are little-endian.  Each address offset gives the
// position of a record relative to the start of the ensemble.  The record
// starts with a two-byte ID which says what kind of record it is.  The
// two-byte checksum comes straight after the last counted byte, so the
// whole ensemble is NumberOfBytes+2 bytes long.
type Header struct {

	// ID - u8, the header ID.
	ID uint8 `json:"id"`

	// DataSource - u8, the data source ID.
	DataSource uint8 `json:"data_source"`

	// NumberOfBytes - u16, the length of the ensemble excluding the checksum.
	// It's also the position of the checksum.
	NumberOfBytes uint16 `json:"number_of_bytes"`

	// Spare - u8.
	Spare uint8 `json:"spare"`

	// NumberOfDataTypes - u8, the number of entries in the address offset table.
	NumberOfDataTypes uint8 `json:"number_of_data_types"`

	// AddressOffsets - one u16 per data type.
	AddressOffsets []uint16 `json:"address_offsets"`

	// logLevel is a slog-style logging level.  It controls what String
	// produces.
	logLevel slog.Level
}

// New creates a Header.
func New(id, dataSource uint8, numberOfBytes uint16, spare uint8,
	addressOffsets []uint16, logLevel slog.Level) *Header {

	header := Header{
		ID:                id,
		DataSource:        dataSource,
		NumberOfBytes:     numberOfBytes,
		Spare:             spare,
		NumberOfDataTypes: uint8(len(addressOffsets)),
		AddressOffsets:    addressOffsets,
		logLevel:          logLevel,
	}

	return &header
}

// Len returns the length of the header including the address offset table.
func (header *Header) Len() int {
	return utils.HeaderLengthBytes + int(header.NumberOfDataTypes)*utils.LenAddressOffset
}

// EnsembleLength returns the length of the whole ensemble including the
// checksum.
func (header *Header) EnsembleLength() int {
	return int(header.NumberOfBytes) + utils.ChecksumLengthBytes
}

// String returns a readable version of the header.
func (header *Header) String() string {
	display := fmt.Sprintf("header ID 0x%02x, data source 0x%02x, %d bytes, %d data types\n",
		header.ID, header.DataSource, header.NumberOfBytes, header.NumberOfDataTypes)

	if header.logLevel == slog.LevelDebug {
		offsets := make([]string, 0, len(header.AddressOffsets))
		for _, o := range header.AddressOffsets {
			offsets = append(offsets, fmt.Sprintf("%d", o))
		}
		display += fmt.Sprintf("spare 0x%02x, address offsets {%s}\n",
			header.Spare, strings.Join(offsets, ", "))
	}

	return display
}

// GetHeader reads the fixed header and the address offset table from the
// start of the given slice.  It returns an error wrapping
// ErrTruncatedHeader or ErrTruncatedAddressTable if the slice is too short.
func GetHeader(b []byte, logLevel slog.Level) (*Header, error) {

	header, err := GetFixedHeader(b, logLevel)
	if err != nil {
		return nil, err
	}

	offsets, err := GetAddressOffsets(b, int(header.NumberOfDataTypes))
	if err != nil {
		return nil, err
	}

	header.AddressOffsets = offsets

	return header, nil
}

// GetFixedHeader reads the six-byte fixed part of the header.  The address
// offsets are left empty.
func GetFixedHeader(b []byte, logLevel slog.Level) (*Header, error) {

	if len(b) < utils.HeaderLengthBytes {
		return nil, fmt.Errorf("%w - got %d bytes, expected at least %d",
			ErrTruncatedHeader, len(b), utils.HeaderLengthBytes)
	}

	header := Header{
		ID:                b[0],
		DataSource:        b[1],
		NumberOfBytes:     utils.GetUint16(b, 2),
		Spare:             b[4],
		NumberOfDataTypes: b[5],
		AddressOffsets:    []uint16{},
		logLevel:          logLevel,
	}

	return &header, nil
}

// GetAddressOffsets reads n address offsets, which start straight after the
// fixed header.
func GetAddressOffsets(b []byte, n int) ([]uint16, error) {

	want := utils.HeaderLengthBytes + n*utils.LenAddressOffset
	if len(b) < want {
		return nil, fmt.Errorf("%w - %d data types need %d bytes, got %d",
			ErrTruncatedAddressTable, n, want, len(b))
	}

	offsets := make([]uint16, n)
	pos := utils.HeaderLengthBytes
	for i := range offsets {
		offsets[i] = utils.GetUint16(b, pos)
		pos += utils.LenAddressOffset
	}

	return offsets, nil
}

// Encode writes the header into the start of the given slice, which must be
// at least Len bytes long.
func (header *Header) Encode(b []byte) {
	b[0] = header.ID
	b[1] = header.DataSource
	utils.PutUint16(b, 2, header.NumberOfBytes)
	b[4] = header.Spare
	b[5] = header.NumberOfDataTypes
	pos := utils.HeaderLengthBytes
	for _, o := range header.AddressOffsets {
		utils.PutUint16(b, pos, o)
		pos += utils.LenAddressOffset
	}
}
