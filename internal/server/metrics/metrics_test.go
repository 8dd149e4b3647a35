package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxiimcha/lk-web/internal/server/models"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMiddleware_LabelsByRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/api/seedrequests/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, id := range []string{"a", "b", "c"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/seedrequests/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	body := scrape(t, m)
	assert.Contains(t, body, `lkweb_http_requests_total{method="GET",route="/api/seedrequests/{id}",status="404"} 3`)
	assert.NotContains(t, body, `/api/seedrequests/a`)
	assert.Contains(t, body, "lkweb_http_inflight_requests 0")
}

func TestObserverCounters(t *testing.T) {
	m := New()

	m.AuthEvent("login", "ok")
	m.AuthEvent("login", "ok")
	m.AuthEvent("otp_verify", "invalid_otp")
	m.Transition(models.StatusApproved, "ok")
	m.Transition("", "validation")
	m.OTPsPurged(3)
	m.OTPsPurged(0)
	m.SetStoreUp(true)

	body := scrape(t, m)
	assert.Contains(t, body, `lkweb_auth_events_total{event="login",outcome="ok"} 2`)
	assert.Contains(t, body, `lkweb_auth_events_total{event="otp_verify",outcome="invalid_otp"} 1`)
	assert.Contains(t, body, `lkweb_requests_transitions_total{outcome="ok",to="approved"} 1`)
	assert.Contains(t, body, `lkweb_requests_transitions_total{outcome="validation",to="unknown"} 1`)
	assert.Contains(t, body, "lkweb_otp_purged_total 3")
	assert.Contains(t, body, "lkweb_store_up 1")
	assert.Contains(t, body, "go_goroutines")

	m.SetStoreUp(false)
	assert.Contains(t, scrape(t, m), "lkweb_store_up 0")
}
