package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandala/approvals/pkg/audit"
	"github.com/mandala/approvals/pkg/automation"
	"github.com/mandala/approvals/pkg/channels/gochannel"
	"github.com/mandala/approvals/pkg/eventbus"
	"github.com/mandala/approvals/pkg/models"
	"github.com/mandala/approvals/pkg/notifier"
	"github.com/mandala/approvals/pkg/persistence/file"
	"github.com/mandala/approvals/pkg/reconciliation"
	"github.com/mandala/approvals/pkg/web"
	"github.com/mandala/approvals/pkg/workflow"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	publisher, subscriber, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(publisher, subscriber)
	t.Cleanup(func() { _ = bus.Close() })

	notify := notifier.NewEventBusNotifier(bus, logger)
	recorder := audit.NewRecorder(store.Audit(), logger)
	matcher := workflow.NewMatcher(store.Workflows(), logger)
	automationEngine := automation.NewEngine(store.AutomationRules(), logger)
	engine := workflow.NewEngine(store, matcher, automationEngine, notify, recorder, logger)
	queue := workflow.NewQueue(store, engine, logger)
	delegations := workflow.NewDelegationManager(store.Delegations(), notify, recorder, logger)
	reconciliationService := reconciliation.NewService(store, bus, recorder, logger)

	require.NoError(t, store.Workflows().Save(context.Background(), &models.ApprovalWorkflow{
		ID:                 "wf-payments",
		Name:               "Venue Payments",
		Active:             true,
		GlobalTimeoutHours: 72,
		Levels: []*models.ApprovalLevel{
			{Level: 1, Name: "RP review", RequiredRole: models.RoleRP, RequiredApprovers: 1, TimeoutHours: 24},
		},
	}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	handlers := web.NewAPIHandlers(engine, queue, delegations, reconciliationService, recorder, store, validate, logger)

	app := fiber.New()

	approvals := app.Group("/approvals")
	approvals.Post("/", handlers.CreateApprovalRequest)
	approvals.Get("/queue", handlers.GetQueue)
	approvals.Get("/:id", handlers.GetApprovalRequest)
	approvals.Post("/:id/actions", handlers.ProcessAction)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	request := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	request.Header.Set("Content-Type", "application/json")

	response, err := app.Test(request)
	require.NoError(t, err)

	return response
}

func decodeRequest(t *testing.T, response *http.Response) *models.ApprovalRequest {
	t.Helper()

	request := new(models.ApprovalRequest)
	require.NoError(t, json.NewDecoder(response.Body).Decode(request))

	return request
}

func createBody(amount float64) web.CreateApprovalRequestBody {
	return web.CreateApprovalRequestBody{
		Transaction: models.Transaction{
			ID:       "txn-1",
			Type:     models.TransactionPayment,
			Amount:   amount,
			Currency: "MXN",
		},
		RequesterID:   "user-requester",
		RequesterRole: models.RoleClient,
	}
}

func TestCreateApprovalRequest(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	response := postJSON(t, app, "/approvals/", createBody(5000))
	assert.Equal(t, fiber.StatusCreated, response.StatusCode)

	created := decodeRequest(t, response)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.StatusPending, created.Status)

	get := httptest.NewRequest(http.MethodGet, "/approvals/"+created.ID, nil)
	getResponse, err := app.Test(get)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, getResponse.StatusCode)
}

func TestCreateApprovalRequest_Validation(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	body := createBody(5000)
	body.RequesterID = ""

	response := postJSON(t, app, "/approvals/", body)
	assert.Equal(t, fiber.StatusBadRequest, response.StatusCode)
	assert.Contains(t, response.Header.Get("Content-Type"), "json")
}

func TestGetApprovalRequest_NotFound(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	request := httptest.NewRequest(http.MethodGet, "/approvals/apr-missing", nil)
	response, err := app.Test(request)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, response.StatusCode)
}

func TestProcessAction(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	created := decodeRequest(t, postJSON(t, app, "/approvals/", createBody(5000)))

	response := postJSON(t, app, "/approvals/"+created.ID+"/actions", workflow.ActionInput{
		ActorID:   "user-rp",
		ActorRole: models.RoleRP,
		Action:    models.ActionApprove,
	})
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	updated := decodeRequest(t, response)
	assert.Equal(t, models.StatusApproved, updated.Status)
}

func TestProcessAction_Forbidden(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	created := decodeRequest(t, postJSON(t, app, "/approvals/", createBody(5000)))

	response := postJSON(t, app, "/approvals/"+created.ID+"/actions", workflow.ActionInput{
		ActorID:   "user-client",
		ActorRole: models.RoleClient,
		Action:    models.ActionApprove,
	})
	assert.Equal(t, fiber.StatusForbidden, response.StatusCode)
}

func TestProcessAction_Conflict(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	created := decodeRequest(t, postJSON(t, app, "/approvals/", createBody(5000)))

	approve := workflow.ActionInput{
		ActorID:   "user-rp",
		ActorRole: models.RoleRP,
		Action:    models.ActionApprove,
	}

	first := postJSON(t, app, "/approvals/"+created.ID+"/actions", approve)
	require.Equal(t, fiber.StatusOK, first.StatusCode)

	// The request is terminal after the single-level approval.
	second := postJSON(t, app, "/approvals/"+created.ID+"/actions", approve)
	assert.Equal(t, fiber.StatusConflict, second.StatusCode)
}

func TestGetQueue(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	created := decodeRequest(t, postJSON(t, app, "/approvals/", createBody(5000)))

	request := httptest.NewRequest(http.MethodGet, "/approvals/queue?approver_id=user-rp&role=rp", nil)
	response, err := app.Test(request)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, response.StatusCode)

	var payload struct {
		Items []*workflow.QueueItem `json:"items"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.NewDecoder(response.Body).Decode(&payload))
	require.Equal(t, 1, payload.Count)
	assert.Equal(t, created.ID, payload.Items[0].Request.ID)
}

func TestGetQueue_RequiresValidRole(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	request := httptest.NewRequest(http.MethodGet, "/approvals/queue?approver_id=user-rp&role=superuser", nil)
	response, err := app.Test(request)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, response.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	response, err := app.Test(request)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, response.StatusCode)
}
