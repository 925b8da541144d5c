package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "payflow.io/payflow/internal/pkg/errors"
	"payflow.io/payflow/internal/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

func newTestRouter() *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(RequestID(), ErrorHandler())
	router.NoRoute(NoRoute())
	router.NoMethod(NoMethod())
	return router
}

func decode(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return body
}

func TestErrorHandler_NoErrors(t *testing.T) {
	router := newTestRouter()
	router.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestErrorHandler_AppErrorWithParams(t *testing.T) {
	router := newTestRouter()
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrPaymentNotFoundf("pay-1"))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	body := decode(t, w)
	if body.Code != apperrors.CodePaymentNotFound {
		t.Errorf("code = %q, want %s", body.Code, apperrors.CodePaymentNotFound)
	}
	if body.Params["payment_id"] != "pay-1" {
		t.Errorf("params = %#v, want payment_id=pay-1", body.Params)
	}
	if body.RequestID != "rid-1" {
		t.Errorf("request_id = %q, want rid-1", body.RequestID)
	}
}

func TestErrorHandler_GenericError(t *testing.T) {
	router := newTestRouter()
	router.GET("/err", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("something unexpected"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := decode(t, w); body.Code != apperrors.CodeInternalError {
		t.Errorf("code = %q, want INTERNAL_ERROR", body.Code)
	}
}

func TestNoRouteAndNoMethod(t *testing.T) {
	router := newTestRouter()
	router.GET("/only-get", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if w.Code != http.StatusNotFound || decode(t, w).Code != apperrors.CodeRouteNotFound {
		t.Errorf("missing route: status = %d body = %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/only-get", nil))
	if w.Code != http.StatusMethodNotAllowed || decode(t, w).Code != apperrors.CodeMethodNotAllowed {
		t.Errorf("wrong method: status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestRequestID_GeneratedWhenMissing(t *testing.T) {
	router := newTestRouter()
	var seen string
	router.GET("/rid", func(c *gin.Context) {
		seen = GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rid", nil))

	if seen == "" {
		t.Fatal("request id not set in context")
	}
	if got := w.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("header = %q, want %q", got, seen)
	}
}
