// The framer package splits a buffer of PD0 data into ensembles.
//
//	f := framer.New(framer.WithFamily(dispatch.SentinelV))
//	for outcome := range f.All(buf) {
//	    if outcome.Bad() {
//	        ...
//	    }
//	}
//	fmt.Print(f.Stats().Report())
//
// The buffer may contain any number of ensembles, some of which may be
// damaged.  The framer looks for the sync marker 0x7f 0x7f that starts an
// ensemble.  The candidate ensemble runs from that marker to the next one,
// or to the end of the buffer.  The framer reads its header and checks its
// checksum.  If those are good, it decodes the records.  Either way, it then
// moves on to the next marker, so one bad ensemble never stops the decoding
// of the rest.
//
// Each candidate produces exactly one Outcome, in the order found: either a
// decoded ensemble or the reason the candidate was rejected.  So if a
// buffer holds N good ensembles, then a corrupted one, then M more good ones,
// the result is N+1+M outcomes with the bad one at index N.
//
// The payload of an ensemble can contain the bytes 0x7f 0x7f by chance.  The
// marker-to-marker span is then too short to hold the ensemble and its
// checksum can't be found.  With look-ahead (the default) the framer checks
// the checksum at the position given in the header, beyond the span.  If
// that's good, the span is extended to cover the whole ensemble and any
// markers inside it are ignored.
//
// Bytes before the first marker and between the end of an ensemble and the
// next marker are skipped.
package framer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/goblimey/go-adcp/pd0/checksum"
	"github.com/goblimey/go-adcp/pd0/dispatch"
	"github.com/goblimey/go-adcp/pd0/ensemble"
	"github.com/goblimey/go-adcp/pd0/header"
	"github.com/goblimey/go-adcp/pd0/matrix"
	"github.com/goblimey/go-adcp/pd0/record"
	"github.com/goblimey/go-adcp/pd0/utils"
)

// Kind classifies an outcome.
type Kind int

// The outcome kinds.  Every kind except KindAccepted is a rejection.
const (
	KindAccepted Kind = iota
	KindTruncatedHeader
	KindTruncatedAddressTable
	KindTruncatedChecksum
	KindChecksumMismatch
	KindOther
)

// Kinds lists the kinds in the order that they are reported.
var Kinds = []Kind{
	KindAccepted,
	KindTruncatedHeader,
	KindTruncatedAddressTable,
	KindTruncatedChecksum,
	KindChecksumMismatch,
	KindOther,
}

func (k Kind) String() string {
	switch k {
	case KindAccepted:
		return "accepted"
	case KindTruncatedHeader:
		return "truncated_header"
	case KindTruncatedAddressTable:
		return "truncated_address_table"
	case KindTruncatedChecksum:
		return "truncated_checksum"
	case KindChecksumMismatch:
		return "checksum_mismatch"
	default:
		return "other"
	}
}

// KindOf classifies an error returned by ensemble.Decode.  A nil error is
// KindAccepted.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindAccepted
	case errors.Is(err, header.ErrTruncatedHeader):
		return KindTruncatedHeader
	case errors.Is(err, header.ErrTruncatedAddressTable):
		return KindTruncatedAddressTable
	case errors.Is(err, checksum.ErrTruncatedChecksum):
		return KindTruncatedChecksum
	case errors.Is(err, checksum.ErrChecksumMismatch):
		return KindChecksumMismatch
	default:
		return KindOther
	}
}

// GapKind classifies the error of a record gap, for example
// "missing_dependency".
func GapKind(err error) string {
	switch {
	case errors.Is(err, record.ErrMissingDependency):
		return "missing_dependency"
	case errors.Is(err, record.ErrUnsupported):
		return "unsupported"
	case errors.Is(err, matrix.ErrShortData):
		return "short_data"
	case errors.Is(err, dispatch.ErrBadOffset):
		return "bad_offset"
	case errors.Is(err, record.ErrDuplicateRecord):
		return "duplicate"
	default:
		return "other"
	}
}

// Outcome is the result of framing one candidate ensemble.
type Outcome struct {
	// Index is the position of the outcome in the sequence, from 0.
	Index int

	// Start and End give the position in the buffer.  For an accepted
	// ensemble that's the ensemble itself, for a rejected candidate it's the
	// span up to the next marker.  For a live stream they are offsets from
	// the start of the stream.
	Start, End int

	// Ensemble is the decoded ensemble, nil if the candidate was rejected.
	Ensemble *ensemble.Ensemble

	// Err says why the candidate was rejected, nil if it was accepted.
	Err error
}

// Bad returns true if the candidate was rejected.
func (o Outcome) Bad() bool {
	return o.Ensemble == nil
}

// Kind returns the kind of the outcome.
func (o Outcome) Kind() Kind {
	if o.Err == nil && o.Ensemble == nil {
		return KindOther
	}
	return KindOf(o.Err)
}

// String returns a readable version of the outcome.
func (o Outcome) String() string {
	if o.Bad() {
		return fmt.Sprintf("%d: bad ensemble at %d-%d: %v\n", o.Index, o.Start, o.End, o.Err)
	}
	return fmt.Sprintf("%d: ensemble at %d-%d\n%s", o.Index, o.Start, o.End, o.Ensemble.String())
}

// Stats holds cumulative counts of outcomes.
type Stats struct {
	// Total is the number of outcomes.
	Total int

	// ByKind counts the outcomes of each kind.
	ByKind map[Kind]int

	// Gaps counts the record gaps in accepted ensembles by GapKind.
	Gaps map[string]int
}

// Accepted returns the number of accepted ensembles.
func (s Stats) Accepted() int {
	return s.ByKind[KindAccepted]
}

// Bad returns the number of rejected candidates.
func (s Stats) Bad() int {
	return s.Total - s.Accepted()
}

// TotalGaps returns the number of record gaps.
func (s Stats) TotalGaps() int {
	n := 0
	for _, v := range s.Gaps {
		n += v
	}
	return n
}

// Report returns the counts in readable form, for example:
//
//	bad ensembles 1/10
//	  checksum_mismatch 1
//	record gaps 0
func (s Stats) Report() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("bad ensembles %d/%d\n", s.Bad(), s.Total))
	for _, k := range Kinds[1:] {
		if n := s.ByKind[k]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %s %d\n", k, n))
		}
	}

	sb.WriteString(fmt.Sprintf("record gaps %d\n", s.TotalGaps()))
	kinds := slices.Collect(maps.Keys(s.Gaps))
	sort.Strings(kinds)
	for _, k := range kinds {
		sb.WriteString(fmt.Sprintf("  %s %d\n", k, s.Gaps[k]))
	}

	return sb.String()
}

// Framer frames and decodes ensembles.  Its methods may be called from
// more than one goroutine.
type Framer struct {
	table     *dispatch.Table
	lookAhead bool
	logger    *slog.Logger
	logLevel  slog.Level

	mutex sync.Mutex
	stats Stats
}

// Option configures a Framer.
type Option func(*Framer)

// WithFamily sets the instrument family.  The default is Workhorse.
func WithFamily(family dispatch.Family) Option {
	return func(f *Framer) {
		f.table = dispatch.ForFamily(family)
	}
}

// WithLookAhead turns look-ahead on or off.  It's on by default.
func WithLookAhead(on bool) Option {
	return func(f *Framer) {
		f.lookAhead = on
	}
}

// WithLogger sets the logger for diagnostics.  By default they are
// discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Framer) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithLogLevel sets the level that controls the String methods of the
// decoded ensembles.
func WithLogLevel(level slog.Level) Option {
	return func(f *Framer) {
		f.logLevel = level
	}
}

// New creates a Framer.
func New(options ...Option) *Framer {
	f := Framer{
		table:     dispatch.ForFamily(dispatch.Workhorse),
		lookAhead: true,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		logLevel:  slog.LevelInfo,
		stats:     newStats(),
	}
	for _, option := range options {
		option(&f)
	}
	return &f
}

// Family returns the instrument family that the framer decodes.
func (f *Framer) Family() dispatch.Family {
	return f.table.Family()
}

// Stats returns a copy of the counts so far.
func (f *Framer) Stats() Stats {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return Stats{
		Total:  f.stats.Total,
		ByKind: maps.Clone(f.stats.ByKind),
		Gaps:   maps.Clone(f.stats.Gaps),
	}
}

// All returns the outcomes for the buffer in order.  The sequence is
// produced lazily; if the caller stops early only the outcomes produced so
// far are counted.  The buffer must not change while the sequence is in use.
func (f *Framer) All(buf []byte) iter.Seq[Outcome] {
	return func(yield func(Outcome) bool) {
		index := 0
		for s := range f.spans(buf) {
			o := f.decode(buf, index, s)
			f.tally(o)
			if !yield(o) {
				return
			}
			index++
		}
	}
}

// Decode returns all of the outcomes for the buffer.
func (f *Framer) Decode(buf []byte) []Outcome {
	return slices.Collect(f.All(buf))
}

// DecodeParallel is Decode with the records of the ensembles decoded by a
// pool of workers.  Finding the ensembles is still sequential.  The
// outcomes are in the same order as Decode returns them.  It returns an
// error only if the context is cancelled.
func (f *Framer) DecodeParallel(ctx context.Context, buf []byte, workers int) ([]Outcome, error) {

	spans := slices.Collect(f.spans(buf))
	outcomes := make([]Outcome, len(spans))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i, s := range spans {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outcomes[i] = f.decode(buf, i, s)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, o := range outcomes {
		f.tally(o)
	}

	return outcomes, nil
}

// HandleEnsembles frames the buffer and writes the outcomes to out, which it
// closes at the end.  It stops early if the context is cancelled.
func (f *Framer) HandleEnsembles(ctx context.Context, buf []byte, out chan<- Outcome) error {
	defer close(out)

	for o := range f.All(buf) {
		select {
		case out <- o:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// span is a candidate ensemble.  If err is set the candidate has already
// been rejected.
type span struct {
	start, end int
	err        error
}

// spans produces the candidate spans in the buffer.
func (f *Framer) spans(buf []byte) iter.Seq[span] {
	return func(yield func(span) bool) {
		start := findMarker(buf, 0)
		for start >= 0 {
			s := f.frame(buf, start)
			if !yield(s) {
				return
			}
			start = findMarker(buf, s.end)
		}
	}
}

// frame finds the extent of the candidate ensemble starting with the sync
// marker at start and checks its header and checksum.  In a run of three
// or more 0x7f bytes the marker may start at any of them, so if the
// candidate fails and the next byte is also 0x7f, the candidate one byte
// on is tried.  If that one is accepted the byte at start is skipped.
func (f *Framer) frame(buf []byte, start int) span {

	s := f.frameAt(buf, start)
	if s.err == nil {
		return s
	}

	next := start + utils.LenSyncMarker
	if next >= len(buf) || buf[next] != utils.SyncByte {
		return s
	}

	// Prefer the shifted candidate if it's accepted, or if it's a whole
	// ensemble with a bad checksum and the original is not.
	shifted := f.frame(buf, start+1)
	if shifted.err == nil ||
		(errors.Is(shifted.err, checksum.ErrChecksumMismatch) && !errors.Is(s.err, checksum.ErrChecksumMismatch)) {

		f.logger.Debug("sync marker found one byte on", "start", shifted.start)
		return shifted
	}

	return s
}

// frameAt frames the candidate ensemble at start.
func (f *Framer) frameAt(buf []byte, start int) span {

	end := findMarker(buf, start+utils.LenSyncMarker)
	if end < 0 {
		end = len(buf)
	}

	h, err := header.GetFixedHeader(buf[start:end], f.logLevel)
	if err != nil {
		return span{start, end, err}
	}

	numberOfBytes := int(h.NumberOfBytes)

	// A checksum containing 0x7f just before the next ensemble looks like
	// the start of its marker.
	if declared := start + numberOfBytes + utils.ChecksumLengthBytes; overlapsMarker(buf, end, declared) {
		end = declared
	}

	candidate := buf[start:end]

	err = checksum.Check(candidate, numberOfBytes)
	if err == nil || !f.lookAhead || !errors.Is(err, checksum.ErrTruncatedChecksum) {
		return span{start, end, err}
	}

	// The checksum is beyond the next marker.  If it's good, that marker
	// is part of the payload.
	if checksum.Check(buf[start:], numberOfBytes) != nil {
		return span{start, end, err}
	}

	extended := start + numberOfBytes + utils.ChecksumLengthBytes
	f.logger.Debug("sync marker inside ensemble, span extended",
		"start", start, "marker", end, "end", extended)

	return span{start, extended, nil}
}

// decode produces the outcome for a span.
func (f *Framer) decode(buf []byte, index int, s span) Outcome {

	o := Outcome{Index: index, Start: s.start, End: s.end, Err: s.err}

	if s.err == nil {
		o.Ensemble, o.Err = ensemble.Decode(buf[s.start:s.end], f.table, f.logLevel, f.logger)
		if o.Err == nil {
			o.End = s.start + o.Ensemble.Len()
		}
	}

	if o.Err != nil {
		f.logger.Info("bad ensemble", "index", index, "start", s.start, "end", s.end,
			"kind", KindOf(o.Err).String(), "error", o.Err)
	}

	return o
}

// tally adds the outcome to the counts.
func (f *Framer) tally(o Outcome) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.stats.Total++
	f.stats.ByKind[o.Kind()]++
	if o.Ensemble != nil {
		for _, g := range o.Ensemble.Gaps {
			f.stats.Gaps[GapKind(g.Err)]++
		}
	}
}

func newStats() Stats {
	return Stats{ByKind: make(map[Kind]int), Gaps: make(map[string]int)}
}

// overlapsMarker returns true if the ensemble ending at declared runs one
// or two bytes into the sync marker found at end, all of them 0x7f, and
// declared is followed by a marker or the end of the buffer.
func overlapsMarker(buf []byte, end, declared int) bool {
	if declared <= end || declared > end+utils.LenSyncMarker || declared > len(buf) {
		return false
	}
	for _, b := range buf[end:declared] {
		if b != utils.SyncByte {
			return false
		}
	}
	return declared == len(buf) || utils.IsSyncMarker(buf, declared)
}

// findMarker returns the position of the first sync marker at or after pos,
// or -1.
func findMarker(buf []byte, pos int) int {
	for i := pos; i+utils.LenSyncMarker <= len(buf); i++ {
		if utils.IsSyncMarker(buf, i) {
			return i
		}
	}
	return -1
}
