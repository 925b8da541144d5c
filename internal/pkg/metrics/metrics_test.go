package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_RecordOperation(t *testing.T) {
	p := NewProvider("payflow_test")

	p.RecordOperation("saga", "start_workflow", StatusSuccess)
	p.RecordOperation("saga", "start_workflow", StatusSuccess)
	p.RecordOperation("saga", "start_workflow", StatusAlreadyStarted)
	p.RecordDuration("saga", "start_workflow", 20*time.Millisecond, StatusSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.operations.WithLabelValues("saga", "start_workflow", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.operations.WithLabelValues("saga", "start_workflow", StatusAlreadyStarted)))
}

func TestProvider_HTTPMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	p := NewProvider("payflow_test")

	r := gin.New()
	r.Use(p.HTTPMiddleware())
	r.GET("/payments/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(p.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/payments/p-1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/payments/p-2", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.requests.WithLabelValues(http.MethodGet, "/payments/:id", "204")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payflow_test_http_requests_total")
}

func TestNoOp(t *testing.T) {
	var r Recorder = NoOp{}
	r.RecordOperation("saga", "x", StatusError)
	r.RecordDuration("saga", "x", time.Second, StatusError)
}
