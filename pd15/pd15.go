// The pd15 package converts TRDI PD15 data to PD0.
//
// PD15 is PD0 packed into printable characters for links that can only
// carry text.  Each character carries six bits of data in its bottom six
// bits, so four characters hold three PD0 bytes:
//
//	chars  |c0 ..543210|c1 ..5432 10|c2 ..54 3210|c3 ..543210|
//	bytes  |b0 76543210            |b1 76543210 |b2 76543210 |
//
// A final group of two or three characters holds one or two bytes.  An
// ensemble is sent as one line of text.
package pd15

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoData is returned by ReadLine when there is no data line.
var ErrNoData = errors.New("no PD15 data line")

// ToPD0 converts a line of PD15 characters to PD0 bytes.  A single
// character left over at the end carries less than a byte and is ignored.
func ToPD0(line []byte) []byte {
	result := make([]byte, 0, len(line)*3/4+1)

	for i := 0; i+1 < len(line); i += 4 {
		c := line[i:min(i+4, len(line))]

		result = append(result, (c[0]&0x3f)<<2|(c[1]&0x30)>>4)
		if len(c) < 3 {
			break
		}
		result = append(result, (c[1]&0x0f)<<4|(c[2]&0x3c)>>2)
		if len(c) < 4 {
			break
		}
		result = append(result, (c[2]&0x03)<<6|c[3]&0x3f)
	}

	return result
}

// FromPD0 converts PD0 bytes to PD15 characters, the reverse of ToPD0.
// Six-bit values below 0x20 are sent as 0x40-0x5f, the rest as 0x20-0x3f,
// so the result is printable and contains no line ends.
func FromPD0(b []byte) []byte {
	result := make([]byte, 0, (len(b)*4+2)/3)

	for i := 0; i < len(b); i += 3 {
		c := b[i:min(i+3, len(b))]

		result = append(result, printable(c[0]>>2))
		switch len(c) {
		case 1:
			result = append(result, printable((c[0]&0x03)<<4))
		case 2:
			result = append(result,
				printable((c[0]&0x03)<<4|c[1]>>4),
				printable((c[1]&0x0f)<<2))
		default:
			result = append(result,
				printable((c[0]&0x03)<<4|c[1]>>4),
				printable((c[1]&0x0f)<<2|c[2]>>6),
				printable(c[2]&0x3f))
		}
	}

	return result
}

// ReadLine skips headerLines lines of text and returns the next line, the
// PD15 data, without its line end.
func ReadLine(r io.Reader, headerLines int) ([]byte, error) {
	reader := bufio.NewReader(r)

	for i := 0; i < headerLines; i++ {
		if _, err := reader.ReadBytes('\n'); err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w - only %d of %d header lines", ErrNoData, i, headerLines)
			}
			return nil, err
		}
	}

	line, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}

	line = bytes.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return nil, ErrNoData
	}

	return line, nil
}

// FromHex converts PD15 data that has been hex encoded to PD0.
func FromHex(s string) ([]byte, error) {
	line, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("bad hex PD15 data - %w", err)
	}
	return ToPD0(line), nil
}

func printable(v byte) byte {
	if v < 0x20 {
		return v + 0x40
	}
	return v
}
