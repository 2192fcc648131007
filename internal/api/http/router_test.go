package http

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/field-dispatch/internal/api/http/handlers"
	"github.com/spec-kit/field-dispatch/internal/auth"
	"github.com/spec-kit/field-dispatch/internal/domain"
	"github.com/spec-kit/field-dispatch/internal/events"
	"github.com/spec-kit/field-dispatch/internal/lifecycle"
	"github.com/spec-kit/field-dispatch/internal/observability"
	"github.com/spec-kit/field-dispatch/internal/persistence"
	"github.com/spec-kit/field-dispatch/internal/ranking"
	"github.com/spec-kit/field-dispatch/internal/repository"
	"github.com/spec-kit/field-dispatch/internal/service"
)

func newTestApp(t *testing.T, authDisabled bool) (*fiber.App, *auth.TokenManager) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.PutSite(domain.Site{ID: "S-1", Name: "Nodo Cercado", Location: domain.Coordinate{Lat: -12.0464, Lng: -77.0428}, Zona: "LIMA"})
	store.PutCrew(domain.Crew{
		ID:              "C-1",
		Name:            "Cuadrilla 1",
		Status:          domain.CrewStatusDisponible,
		Type:            domain.CrewTypeRegular,
		Zone:            "LIMA",
		CurrentLocation: &domain.Coordinate{Lat: -12.05, Lng: -77.04},
	})

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	repos := store.Repositories()
	deps := service.TransitionDependencies{
		Repos:      repos,
		Machine:    lifecycle.NewMachine(0),
		Locker:     persistence.NewLocalLocker(),
		Dispatcher: events.NewInMemoryDispatcher(),
		Metrics:    metrics,
		Logger:     logger,
		Clock:      func() time.Time { return time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC) },
	}
	crewService := service.NewCrewService(service.CrewDependencies{CrewRepo: repos.Crews, Metrics: metrics, Logger: logger})
	tokens := auth.NewTokenManager("test-secret", 5)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("field-dispatch", "test", nil, nil),
		Tickets: handlers.NewTicketsHandler(service.NewTicketService(deps)),
		Dispatch: handlers.NewDispatchHandler(service.NewDispatchService(service.DispatchDependencies{
			TransitionDependencies: deps,
			Engine:                 ranking.NewEngine(nil),
			CrewService:            crewService,
		})),
		Field: handlers.NewFieldHandler(service.NewFieldService(service.FieldDependencies{
			TransitionDependencies: deps,
			CrewService:            crewService,
		})),
		Crews:          handlers.NewCrewsHandler(crewService),
		Metrics:        metrics,
		AuthMiddleware: auth.NewAuthMiddleware(tokens, authDisabled),
	})
	return app, tokens
}

func call(t *testing.T, app *fiber.App, method, path, role, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Actor-Id", strings.ToLower(role)+"-1")
		req.Header.Set("X-Actor-Role", role)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestTicketFlowOverHTTP(t *testing.T) {
	app, _ := newTestApp(t, true)

	status, body := call(t, app, nethttp.MethodPost, "/tickets", "DISPATCHER",
		`{"id":"T-1","site_id":"S-1","priority":"P1","intervention_type":"CORTE ENERGIA"}`)
	require.Equal(t, nethttp.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "recepcion", data["status"])

	status, body = call(t, app, nethttp.MethodPost, "/tickets/T-1/dispatch", "DISPATCHER", "")
	require.Equal(t, nethttp.StatusOK, status, body)
	data = body["data"].(map[string]any)
	assert.Equal(t, "regular", data["outcome"])

	status, body = call(t, app, nethttp.MethodPost, "/tickets/T-1/arrival", "TECHNICIAN", `{"location":{"lat":-12.0500,"lng":-77.0428}}`)
	assert.Equal(t, nethttp.StatusUnprocessableEntity, status)
	assert.Equal(t, "GUARD_FAILED", errorCode(body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "out_of_range", details["reason"])

	status, body = call(t, app, nethttp.MethodPost, "/tickets/T-1/arrival", "TECHNICIAN", `{"location":{"lat":-12.0464,"lng":-77.0428}}`)
	require.Equal(t, nethttp.StatusOK, status, body)
	change := body["data"].(map[string]any)["change"].(map[string]any)
	assert.Equal(t, "asignar", change["old_status"])
	assert.Equal(t, "arribo", change["new_status"])

	status, body = call(t, app, nethttp.MethodGet, "/tickets/T-1/history", "TRACKER", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Len(t, body["data"], 3)

	status, body = call(t, app, nethttp.MethodGet, "/tickets/T-1/sla", "TRACKER", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(480), body["data"].(map[string]any)["remaining_minutes"])
}

func TestRoleGates(t *testing.T) {
	app, _ := newTestApp(t, true)

	status, body := call(t, app, nethttp.MethodPost, "/tickets", "TECHNICIAN", `{"site_id":"S-1","priority":"P1"}`)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = call(t, app, nethttp.MethodPost, "/tickets/T-1/evidence/approve", "TECHNICIAN", "")
	assert.Equal(t, nethttp.StatusForbidden, status)
}

func TestBearerTokenRequired(t *testing.T) {
	app, tokens := newTestApp(t, false)

	status, body := call(t, app, nethttp.MethodGet, "/crews", "", "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	token, _, err := tokens.GenerateToken("disp-1", domain.RoleDispatcher)
	require.NoError(t, err)
	req := httptest.NewRequest(nethttp.MethodGet, "/crews", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
}

func TestErrorsAndHealthChecks(t *testing.T) {
	app, _ := newTestApp(t, true)

	status, body := call(t, app, nethttp.MethodGet, "/tickets/missing", "TRACKER", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = call(t, app, nethttp.MethodPut, "/crews/C-1/location", "TRACKER", `{"lat":123,"lng":0}`)
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = call(t, app, nethttp.MethodGet, "/health/ready", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	status, _ = call(t, app, nethttp.MethodGet, "/metrics", "", "")
	assert.Equal(t, nethttp.StatusOK, status)
}
