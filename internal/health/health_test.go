package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tapmeter/internal/clock"
)

func healthy(ctx context.Context) CheckResult   { return CheckResult{Status: StatusHealthy} }
func unhealthy(ctx context.Context) CheckResult { return CheckResult{Status: StatusUnhealthy} }

func TestOverallStatus(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("store", true, healthy)
	c.RegisterFunc("exports", false, unhealthy)

	assert.Equal(t, StatusUnknown, c.OverallStatus(), "critical component never checked")

	c.Check(context.Background())
	assert.Equal(t, StatusDegraded, c.OverallStatus())

	c.RegisterFunc("input", true, unhealthy)
	c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, c.OverallStatus())
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker()
	c.Register(&Component{
		Name:     "slow",
		Critical: true,
		Timeout:  20 * time.Millisecond,
		Check: func(ctx context.Context) CheckResult {
			time.Sleep(200 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		},
	})

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, "check timed out", results["slow"].Message)

	got, ok := c.GetResult("slow")
	require.True(t, ok)
	assert.Equal(t, StatusUnhealthy, got.Status)
}

func TestCheckPanic(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("boom", true, func(ctx context.Context) CheckResult { panic("kaboom") })

	results := c.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, results["boom"].Status)
	assert.Equal(t, "kaboom", results["boom"].Error)
}

func TestHealthHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterFunc("store", true, healthy)

	rec := httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "not ready yet")

	c.SetReady(true)
	rec = httptest.NewRecorder()
	c.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz?full=true", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.True(t, resp.Ready)
	assert.Contains(t, resp.Components, "store")
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alive")
}

func TestDatabaseCheck(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusHealthy, DatabaseCheck(func() error { return nil })(ctx).Status)

	res := DatabaseCheck(func() error { return errors.New("locked") })(ctx)
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "locked", res.Error)
}

func TestInputCheck(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusHealthy, InputCheck("replay", func() bool { return true })(ctx).Status)
	res := InputCheck("evdev", func() bool { return false })(ctx)
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "evdev", res.Details["source"])
}

func TestCalibrationCheck(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusUnhealthy, CalibrationCheck(func() clock.Rate { return 0 })(ctx).Status)
	assert.Equal(t, StatusHealthy, CalibrationCheck(func() clock.Rate { return 1e9 })(ctx).Status)
}

func TestDirWritableCheck(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	assert.Equal(t, StatusHealthy, DirWritableCheck(dir)(ctx).Status)
	assert.Equal(t, StatusDegraded, DirWritableCheck(filepath.Join(dir, "missing"))(ctx).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write-test file left behind")
}
