package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthz(t *testing.T) {
	tests := []struct {
		name   string
		fn     HealthFunc
		status int
	}{
		{name: "nil", fn: nil, status: http.StatusOK},
		{name: "healthy", fn: func(context.Context) error { return nil }, status: http.StatusOK},
		{name: "unhealthy", fn: func(context.Context) error { return errors.New("pg down") }, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewMux(tt.fn).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
