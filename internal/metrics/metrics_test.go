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

func TestObserveConversion(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(conversions.WithLabelValues("booklet", "success"))
	ObserveConversion("booklet", "success", 120*time.Millisecond)
	ObserveConversion("booklet", "failed", time.Second)

	assert.Equal(t, before+1, testutil.ToFloat64(conversions.WithLabelValues("booklet", "success")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(conversions.WithLabelValues("booklet", "failed")), 1.0)
}

func TestCountersAndGauges(t *testing.T) {
	b := testutil.ToFloat64(blankPages)
	AddBlanks(3)
	assert.Equal(t, b+3, testutil.ToFloat64(blankPages))

	s := testutil.ToFloat64(sheetsProcessed.WithLabelValues("simple"))
	AddSheets("simple", 4)
	assert.Equal(t, s+4, testutil.ToFloat64(sheetsProcessed.WithLabelValues("simple")))

	SetQueueDepth(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(queueDepth))
	SetSyncInFlight(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(syncInFlight))
}

func TestHandlerExposesNamespace(t *testing.T) {
	Init()
	AddSkipped(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sheetsplit_skipped_sheets_total")
}
