// The checksum package validates the checksum at the end of a PD0 ensemble.
//
// The checksum is the sum of all the bytes in the ensemble from the first
// byte of the header up to but not including the checksum, modulo 65536.
// It's stored as a little-endian u16 at the position given by the header's
// number of bytes field.
package checksum

import (
	"errors"
	"fmt"

	"github.com/goblimey/go-adcp/pd0/utils"
)

// ErrTruncatedChecksum is returned when the data ends before the checksum.
var ErrTruncatedChecksum = errors.New("truncated checksum")

// ErrChecksumMismatch is matched (via errors.Is) by a MismatchError.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// MismatchError gives the calculated and the stored checksum of an ensemble
// that failed validation.
type MismatchError struct {
	Calculated uint16
	Given      uint16
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch - calculated 0x%04x, ensemble contains 0x%04x",
		e.Calculated, e.Given)
}

// Is supports errors.Is(err, ErrChecksumMismatch).
func (e *MismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// Calculate returns the sum of the bytes modulo 65536.
func Calculate(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}

// Check checks the checksum of the ensemble at the start of b whose length
// (not counting the checksum) is numberOfBytes.  Any bytes after the
// checksum are ignored.
func Check(b []byte, numberOfBytes int) error {

	if numberOfBytes < 0 || !utils.Available(b, numberOfBytes, utils.ChecksumLengthBytes) {
		return fmt.Errorf("%w - need %d bytes, got %d",
			ErrTruncatedChecksum, numberOfBytes+utils.ChecksumLengthBytes, len(b))
	}

	calculated := Calculate(b[:numberOfBytes])
	given := utils.GetUint16(b, numberOfBytes)

	if calculated != given {
		return &MismatchError{Calculated: calculated, Given: given}
	}

	return nil
}

// Append calculates the checksum of b and returns b with the checksum added.
func Append(b []byte) []byte {
	sum := Calculate(b)
	return append(b, byte(sum), byte(sum>>8))
}
