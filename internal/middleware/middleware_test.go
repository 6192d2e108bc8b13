package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
			logger, err := NewLogger(level, format)
			require.NoError(t, err, "level=%s format=%s", level, format)
			require.NotNil(t, logger)
			logger.Sync()
		}
	}
}

func TestNewLoggerLevelThreshold(t *testing.T) {
	logger, err := NewLogger("warn", "json")
	require.NoError(t, err)

	assert.Nil(t, logger.Check(zap.InfoLevel, "below threshold"))
	assert.NotNil(t, logger.Check(zap.WarnLevel, "at threshold"))
}

func TestRecoveryMiddlewareReturns500(t *testing.T) {
	rm := NewRecoveryMiddleware(zap.NewNop())
	handler := rm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/attribution/run", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
