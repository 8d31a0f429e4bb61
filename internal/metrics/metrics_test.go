package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordQueryClassifiesErrors(t *testing.T) {
	before := testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "canceled"))
	RecordQuery("test_op", time.Now(), context.Canceled)
	assert.Equal(t, before+1, testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "canceled")))

	before = testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "query_error"))
	RecordQuery("test_op", time.Now(), errors.New("boom"))
	assert.Equal(t, before+1, testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "query_error")))

	RecordQuery("test_op", time.Now(), nil)
	assert.Equal(t, before+1, testutil.ToFloat64(DBErrors.WithLabelValues("test_op", "query_error")))
}

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(HTTPMiddleware)
	r.Get("/api/events/stats/{eventId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/events/stats/{eventId}", "404")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodGet, "/api/events/stats/42", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RegistrationAttempts.WithLabelValues("success").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "eventreg_registration_attempts_total"))
}
