// The metrics package exports counts of decoded and rejected PD0 ensembles
// as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goblimey/go-adcp/pd0/framer"
)

// GapKinds are the values of the kind label of the record gap counter.
var GapKinds = []string{
	"missing_dependency",
	"unsupported",
	"short_data",
	"bad_offset",
	"duplicate",
	"other",
}

// Collector holds the counters.
type Collector struct {
	// ensembles counts outcomes by kind, for example "accepted" or
	// "checksum_mismatch".
	ensembles *prometheus.CounterVec

	// gaps counts the record gaps in accepted ensembles.
	gaps *prometheus.CounterVec

	// bytesRead counts the bytes read from the instrument.
	bytesRead prometheus.Counter
}

// New creates a Collector and registers its counters with reg.  All of
// the label values are created up front so that they are exported as zero
// before anything happens.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	c := Collector{
		ensembles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pd0_ensembles_total",
				Help: "Candidate PD0 ensembles by outcome",
			},
			[]string{"outcome"},
		),
		gaps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pd0_record_gaps_total",
				Help: "Records that could not be decoded in accepted ensembles, by kind",
			},
			[]string{"kind"},
		),
		bytesRead: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pd0_bytes_read_total",
				Help: "Bytes read from the instrument",
			},
		),
	}

	for _, k := range framer.Kinds {
		c.ensembles.WithLabelValues(k.String())
	}
	for _, k := range GapKinds {
		c.gaps.WithLabelValues(k)
	}

	return &c
}

// Observe counts an outcome and its record gaps.
func (c *Collector) Observe(o framer.Outcome) {
	c.ensembles.WithLabelValues(o.Kind().String()).Inc()
	if o.Ensemble == nil {
		return
	}
	for _, g := range o.Ensemble.Gaps {
		c.gaps.WithLabelValues(framer.GapKind(g.Err)).Inc()
	}
}

// AddBytes counts bytes read.
func (c *Collector) AddBytes(n int) {
	if n > 0 {
		c.bytesRead.Add(float64(n))
	}
}
