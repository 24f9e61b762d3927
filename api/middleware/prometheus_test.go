package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(PrometheusMiddleware("pingpoint-test"))
	r.GET("/status/:userId", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	counter := httpRequestsTotal.WithLabelValues("GET", "/status/:userId", "204", "pingpoint-test")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404", "pingpoint-test")))
}

func TestDomainCounters(t *testing.T) {
	approved := validationTransitions.WithLabelValues("pending", "approved")
	before := testutil.ToFloat64(approved)
	RecordValidationTransition("pending", "approved")
	assert.Equal(t, before+1, testutil.ToFloat64(approved))

	skill := pingsCreated.WithLabelValues("skill")
	before = testutil.ToFloat64(skill)
	RecordPingCreated("skill")
	assert.Equal(t, before+1, testutil.ToFloat64(skill))
}
