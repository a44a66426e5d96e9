package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDescription(t *testing.T) {
	before := testutil.ToFloat64(descriptionRequestsTotal.WithLabelValues("auto", StatusSuccess))
	RecordDescription("auto", StatusSuccess, 1.2)
	after := testutil.ToFloat64(descriptionRequestsTotal.WithLabelValues("auto", StatusSuccess))
	assert.Equal(t, before+1, after)
}

func TestRecordTriggerDropped(t *testing.T) {
	before := testutil.ToFloat64(triggersDroppedTotal.WithLabelValues("question"))
	RecordTriggerDropped("question")
	RecordTriggerDropped("question")
	assert.Equal(t, before+2, testutil.ToFloat64(triggersDroppedTotal.WithLabelValues("question")))
}

func TestRecordCounters(t *testing.T) {
	RecordFrame("captured")
	RecordTTSAttempt("local", StatusError)
	RecordListen("no_speech")
	SetSpeechQueueDepth(3)

	assert.GreaterOrEqual(t, testutil.ToFloat64(framesTotal.WithLabelValues("captured")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(ttsAttemptsTotal.WithLabelValues("local", StatusError)), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(listenTotal.WithLabelValues("no_speech")), 1.0)
	assert.Equal(t, 3.0, testutil.ToFloat64(speechQueueDepth))
}

func TestExporterHandler(t *testing.T) {
	e := NewExporter("127.0.0.1:0")
	RecordFrame("dropped")

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "itark_frames_total")

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))
}

func TestExporterStartShutdown(t *testing.T) {
	e := NewExporter("127.0.0.1:0")
	require.NoError(t, e.Start())
	require.NoError(t, e.Start())
	assert.NoError(t, e.Shutdown(context.Background()))
	assert.NoError(t, e.Shutdown(context.Background()))
}

func findFamily(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not gathered", name)
	return nil
}

func TestExporterRegistryGathersDurations(t *testing.T) {
	e := NewExporter("127.0.0.1:0")
	RecordDescription("question", StatusSuccess, 0.3)

	families, err := e.Registry().Gather()
	require.NoError(t, err)

	mf := findFamily(t, families, "itark_description_duration_seconds")
	assert.Equal(t, dto.MetricType_HISTOGRAM, mf.GetType())

	var samples uint64
	for _, m := range mf.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "mode" && l.GetValue() == "question" {
				samples += m.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.GreaterOrEqual(t, samples, uint64(1))

	findFamily(t, families, "go_goroutines")
}
