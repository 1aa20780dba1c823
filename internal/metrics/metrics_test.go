package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoute(t *testing.T) {
	handler := Middleware(func(*http.Request) string { return "/api/patients/{id}" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/patients/{id}", "404"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patients/65a1f0c2b4d3e5f60718293a", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/patients/{id}", "404"))
	assert.Equal(t, before+1, after)
	assert.Equal(t, float64(0), testutil.ToFloat64(HTTPActiveConnections))
}

func TestMiddlewareDefaultsStatusAndEndpoint(t *testing.T) {
	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "unmatched", "200"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/nowhere", nil))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "unmatched", "200"))

	assert.Equal(t, before+1, after)
}

func TestRecordPatientOperation(t *testing.T) {
	before := testutil.ToFloat64(patientOperationsTotal.WithLabelValues("create", "duplicate_email"))
	RecordPatientOperation("create", "duplicate_email", 5*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(patientOperationsTotal.WithLabelValues("create", "duplicate_email")))
}

func TestRecordSeedRun(t *testing.T) {
	stored := testutil.ToFloat64(seedRecordsTotal.WithLabelValues("stored"))
	invalid := testutil.ToFloat64(seedRecordsTotal.WithLabelValues("invalid"))

	RecordSeedRun("success", time.Now(), 3, 2, 0)

	assert.Equal(t, stored+3, testutil.ToFloat64(seedRecordsTotal.WithLabelValues("stored")))
	assert.Equal(t, invalid+2, testutil.ToFloat64(seedRecordsTotal.WithLabelValues("invalid")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordSkippedRecord()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "patient_records_skipped_total"))
}

func TestSystemCollectorSamples(t *testing.T) {
	sc := newSystemCollector(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc.Start(ctx, time.Hour)

	assert.Greater(t, testutil.ToFloat64(sc.goGoroutines), float64(0))
	assert.Greater(t, testutil.ToFloat64(sc.goHeapSys), float64(0))
}
