package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/jhoicas/inventario-ledger/internal/interfaces/http"
)

func buildTestApp(checks map[string]apphttp.Checker) *fiber.App {
	app := apphttp.NewApp("ledger-test")
	apphttp.Router(app, apphttp.RouterDeps{AppName: "ledger-test", Checks: checks, CheckTimeout: 50 * time.Millisecond})
	return app
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), "respuesta JSON: %s", raw)
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	app := buildTestApp(nil)
	status, body := get(t, app, "/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ledger-test", body["service"])
}

func TestReady_TodasLasDependenciasDisponibles(t *testing.T) {
	app := buildTestApp(map[string]apphttp.Checker{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	})
	status, body := get(t, app, "/ready")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "ok"}, body["checks"])
}

func TestReady_DependenciaCaida(t *testing.T) {
	app := buildTestApp(map[string]apphttp.Checker{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})
	status, body := get(t, app, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", body["status"])
	checks, ok := body["checks"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "connection refused", checks["redis"])
	assert.Equal(t, "ok", checks["postgres"])
}

func TestReady_VerificacionLentaSeCorta(t *testing.T) {
	app := buildTestApp(map[string]apphttp.Checker{
		"postgres": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	status, body := get(t, app, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, context.DeadlineExceeded.Error(), checks["postgres"])
}
