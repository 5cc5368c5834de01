package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	r.RecordUpload("ok")
	r.RecordUpload("ok")
	r.RecordUpload("upload_failed")
	r.RecordSearch("not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.uploads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.uploads.WithLabelValues("upload_failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.searches.WithLabelValues("not_found")))
}

func TestRecorderReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRecorder(reg)
	require.NoError(t, err)
	second, err := NewRecorder(reg)
	require.NoError(t, err)

	second.RecordSearch("ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(first.searches.WithLabelValues("ok")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordUpload("ok")
	r.RecordSearch("ok")
}
