package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/correlation"
	apperrors "github.com/arjun-vegeta/QuickPoll/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMiddleware(t *testing.T, m *metrics.HTTPMetrics, handlerErr error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), rec)

	handler := ErrorHandlingMiddleware(m)(func(c echo.Context) error {
		return handlerErr
	})
	require.NoError(t, handler(c))
	return rec
}

func TestErrorHandlingMiddleware_StructuredError(t *testing.T) {
	rec := runMiddleware(t, nil, apperrors.ValidationError("invalid poll id", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid poll id", resp.Error)
	assert.Equal(t, apperrors.TypeValidation, resp.Type)
}

func TestErrorHandlingMiddleware_PlainErrorHidesCause(t *testing.T) {
	rec := runMiddleware(t, nil, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestErrorHandlingMiddleware_AllErrorTypes(t *testing.T) {
	tests := []struct {
		name       string
		err        *apperrors.Error
		wantStatus int
	}{
		{"validation", apperrors.ValidationError("invalid", nil), http.StatusBadRequest},
		{"not_found", apperrors.NotFoundError("missing"), http.StatusNotFound},
		{"rate_limited", apperrors.RateLimitedError("slow down"), http.StatusTooManyRequests},
		{"internal", apperrors.InternalError("failed", errors.New("cause")), http.StatusInternalServerError},
		{"unavailable", apperrors.UnavailableError("breaker open", errors.New("open")), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := runMiddleware(t, nil, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.err.Type, resp.Type)
		})
	}
}

func TestErrorHandlingMiddleware_PassesThroughEchoErrors(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/test", nil), httptest.NewRecorder())

	httpErr := echo.NewHTTPError(http.StatusUnsupportedMediaType)
	err := ErrorHandlingMiddleware(nil)(func(c echo.Context) error { return httpErr })(c)

	assert.Same(t, httpErr, err)
}

func TestErrorHandlingMiddleware_CountsByType(t *testing.T) {
	m := metrics.NewHTTPMetrics(prometheus.NewRegistry())

	runMiddleware(t, m, apperrors.NotFoundError("missing"))
	runMiddleware(t, m, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Errors.WithLabelValues("internal")))
}

func TestCorrelationMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		reuse    bool
	}{
		{"generates when absent", "", false},
		{"reuses well formed id", "req-1234abcd", true},
		{"replaces malformed id", "bad id\nwith newline", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.incoming != "" {
				req.Header.Set(correlationHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var seen string
			err := correlationMiddleware(func(c echo.Context) error {
				seen, _ = correlation.ID(c.Request().Context())
				return nil
			})(c)
			require.NoError(t, err)

			require.NotEmpty(t, seen)
			assert.Equal(t, seen, rec.Header().Get(correlationHeader))
			if tt.reuse {
				assert.Equal(t, tt.incoming, seen)
			} else {
				assert.NotEqual(t, tt.incoming, seen)
			}
		})
	}
}
