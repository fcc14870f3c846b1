package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDecoderMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewDecoder(reg, "test")
	require.NoError(t, err)

	m.ObserveSample("parse", errors.New("boom"))
	m.ObserveSample("parse", nil)
	m.ObserveSample("", nil)
	m.ObserveStage("decode", time.Millisecond)
	m.PerThreadEntryCreated(256)
	m.PerThreadEntryCreated(256)
	m.PerThreadEntryClosed(256)

	require.Equal(t, 1.0, testutil.ToFloat64(m.samplesTotal.WithLabelValues("parse", StatusFailure)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.samplesTotal.WithLabelValues("done", StatusSuccess)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.perThreadEntriesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.perThreadEntries))
	require.Equal(t, 256.0, testutil.ToFloat64(m.scratchBytes))

	err = testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP imgcodec_per_thread_resources Current number of per-thread resource entries
# TYPE imgcodec_per_thread_resources gauge
imgcodec_per_thread_resources{decoder="test"} 1
`), "imgcodec_per_thread_resources")
	require.NoError(t, err)

	_, err = NewDecoder(reg, "test")
	require.Error(t, err, "double registration must fail")
}

func TestNilDecoderMetrics(t *testing.T) {
	var m *Decoder
	m.ObserveSample("decode", errors.New("boom"))
	m.ObserveStage("decode", time.Second)
	m.PerThreadEntryCreated(1)
	m.PerThreadEntryClosed(1)
}
