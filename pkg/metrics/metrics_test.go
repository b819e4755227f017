package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.DraftCreated("pdf")
	m.DraftCreated("pdf")
	m.DraftFinalized()
	m.DraftsPurged(3)
	m.DraftsPurged(0)
	m.PDFImported("pix")
	m.ObserveHTTP(http.MethodPost, "/importar-pdf", http.StatusCreated, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.draftsCreated.WithLabelValues("pdf")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.draftsFinalized))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.draftsPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.imports.WithLabelValues("pix")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/importar-pdf", "201")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.DraftFinalized()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "boleto_drafts_finalized_total 1")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DraftCreated("form")
		m.DraftFinalized()
		m.DraftsPurged(1)
		m.PDFImported("pix")
		m.ObserveHTTP("GET", "/", 200, time.Second)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
