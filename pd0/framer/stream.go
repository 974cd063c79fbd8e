package framer

import (
	"github.com/goblimey/go-adcp/pd0/checksum"
	"github.com/goblimey/go-adcp/pd0/header"
	"github.com/goblimey/go-adcp/pd0/utils"
)

// Stream frames data that arrives in pieces, for example from a serial
// line.  Feed it bytes as they arrive and call Next until it returns
// false.  An outcome is only produced once its end is known: the next sync
// marker has arrived, or the whole of the ensemble given by its header has
// arrived and its checksum is good.  At the end of the input call Flush to
// get the outcomes for whatever is left.
//
// A Stream is not safe for use by more than one goroutine.
type Stream struct {
	framer *Framer

	// buf holds the bytes that have not been framed yet.
	buf []byte

	// consumed is the number of bytes removed from the front of buf.
	consumed int

	// index is the index of the next outcome.
	index int
}

// NewStream creates a Stream that uses the framer.  Outcomes from the
// stream are counted in the framer's Stats.
func (f *Framer) NewStream() *Stream {
	return &Stream{framer: f, buf: make([]byte, 0)}
}

// Feed adds bytes to the stream.
func (s *Stream) Feed(b []byte) {
	s.buf = append(s.buf, b...)
}

// Buffered returns the number of bytes waiting to be framed.
func (s *Stream) Buffered() int {
	return len(s.buf)
}

// Next returns the next outcome if there is one.
func (s *Stream) Next() (Outcome, bool) {

	s.discardJunk()

	if !utils.IsSyncMarker(s.buf, 0) {
		return Outcome{}, false
	}

	next := findMarker(s.buf, utils.LenSyncMarker)

	if next < 0 {
		// No more markers yet.  The ensemble is complete if its checksum
		// has arrived and is good.  After a third 0x7f the ensemble may
		// start one byte on.
		if sp, ok := s.complete(0); ok {
			return s.emit(sp), true
		}
		if len(s.buf) > utils.LenSyncMarker && s.buf[utils.LenSyncMarker] == utils.SyncByte {
			if sp, ok := s.complete(1); ok {
				return s.emit(sp), true
			}
		}
		return Outcome{}, false
	}

	// An accepted ensemble can't be changed by more data, but a rejection
	// might be.
	sp := s.framer.frame(s.buf, 0)
	if sp.err != nil && !s.settled(0, next) {
		return Outcome{}, false
	}

	return s.emit(sp), true
}

// complete returns the span of the ensemble at start if all of it has
// arrived and its checksum is good.
func (s *Stream) complete(start int) (span, bool) {
	h, err := header.GetFixedHeader(s.buf[start:], s.framer.logLevel)
	if err != nil {
		return span{}, false
	}
	numberOfBytes := int(h.NumberOfBytes)
	if checksum.Check(s.buf[start:], numberOfBytes) != nil {
		return span{}, false
	}
	return span{start, start + numberOfBytes + utils.ChecksumLengthBytes, nil}, true
}

// Flush returns the outcomes for all of the remaining data, which is
// treated as the end of the input.
func (s *Stream) Flush() []Outcome {
	result := make([]Outcome, 0)
	for {
		if o, ok := s.Next(); ok {
			result = append(result, o)
			continue
		}
		if !utils.IsSyncMarker(s.buf, 0) {
			break
		}
		result = append(result, s.emit(s.framer.frame(s.buf, 0)))
	}

	s.consumed += len(s.buf)
	s.buf = s.buf[:0]

	return result
}

// settled returns true if enough data has arrived to frame the candidate
// at start, whose span ends at the sync marker at end, the way it would be
// framed with all of the data.  The bytes just after the marker are needed
// to see a checksum running into it.  With look-ahead the whole ensemble
// given by the header is needed.  In a run of 0x7f bytes the candidate one
// byte on must be settled too.
func (s *Stream) settled(start, end int) bool {

	if len(s.buf) < end+2*utils.LenSyncMarker {
		return false
	}

	if s.framer.lookAhead {
		h, err := header.GetFixedHeader(s.buf[start:end], s.framer.logLevel)
		if err == nil {
			length := start + int(h.NumberOfBytes) + utils.ChecksumLengthBytes
			if length > end && len(s.buf) < length {
				return false
			}
		}
	}

	if s.buf[start+utils.LenSyncMarker] != utils.SyncByte {
		return true
	}

	shiftedEnd := findMarker(s.buf, start+1+utils.LenSyncMarker)
	if shiftedEnd < 0 {
		return false
	}
	return s.settled(start+1, shiftedEnd)
}

// discardJunk removes any bytes before the first sync marker.  A final
// 0x7f is kept in case it's the first half of a marker.
func (s *Stream) discardJunk() {
	drop := findMarker(s.buf, 0)
	if drop < 0 {
		drop = len(s.buf)
		if drop > 0 && s.buf[drop-1] == utils.SyncByte {
			drop--
		}
	}
	if drop == 0 {
		return
	}

	s.framer.logger.Debug("skipping non-PD0 data", "start", s.consumed, "length", drop)
	s.drop(drop)
}

// emit produces the outcome for a span at the front of the buffer and
// removes the span from the buffer.
func (s *Stream) emit(sp span) Outcome {

	// The ensemble keeps its raw bytes, so it gets its own copy.
	raw := make([]byte, sp.end)
	copy(raw, s.buf[:sp.end])

	o := s.framer.decode(raw, s.index, sp)
	o.Start += s.consumed
	o.End += s.consumed
	s.framer.tally(o)

	s.index++
	s.drop(sp.end)

	return o
}

func (s *Stream) drop(n int) {
	s.buf = append(s.buf[:0], s.buf[n:]...)
	s.consumed += n
}
