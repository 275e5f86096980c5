package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestReadyAggregatesWorstStatus(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus Status
		wantCode   int
	}{
		{"all up", map[string]Check{"index": PingCheck(up, false)}, StatusUp, http.StatusOK},
		{"optional down", map[string]Check{
			"index": PingCheck(up, false),
			"redis": PingCheck(down, true),
		}, StatusDegraded, http.StatusOK},
		{"required down", map[string]Check{
			"index": PingCheck(down, false),
			"redis": PingCheck(down, true),
		}, StatusDown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			for name, check := range tt.checks {
				c.Register(name, check)
			}
			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var report Report
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Len(t, report.Components, len(tt.checks))
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
