package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "attachments"

// Recorder counts workflow outcomes per action.
type Recorder struct {
	uploads  *prometheus.CounterVec
	searches *prometheus.CounterVec
}

// NewRecorder registers the workflow counters on reg, reusing collectors
// that are already registered.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by outcome.",
		}, []string{"outcome"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Service order searches by outcome.",
		}, []string{"outcome"}),
	}

	var err error
	if r.uploads, err = register(reg, r.uploads); err != nil {
		return nil, err
	}
	if r.searches, err = register(reg, r.searches); err != nil {
		return nil, err
	}
	return r, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("register metric failed: %w", err)
	}
	return c, nil
}

func (r *Recorder) RecordUpload(outcome string) {
	if r == nil {
		return
	}
	r.uploads.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordSearch(outcome string) {
	if r == nil {
		return
	}
	r.searches.WithLabelValues(outcome).Inc()
}
