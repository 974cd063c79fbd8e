// The bottomtrack package handles the bottom track record of a Workhorse
// ensemble.  Decoding is not supported yet, so GetRecord always fails with
// record.ErrUnsupported.  The ensemble decoder reports that as a gap and
// carries on.
package bottomtrack

import (
	"fmt"

	"github.com/goblimey/go-adcp/pd0/record"
)

// GetRecord returns an error wrapping record.ErrUnsupported.
//
// TODO: decode the bottom track leader (pings per ensemble, correlation and
// amplitude minimums, mode, maximum error velocity) and the per-beam range,
// velocity, correlation and amplitude blocks.
func GetRecord(b []byte, offset int, tag string) (*record.Record, error) {
	return nil, fmt.Errorf("%s at offset %d: %w", tag, offset, record.ErrUnsupported)
}
