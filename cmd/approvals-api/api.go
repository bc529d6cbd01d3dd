// Package main provides the approvals API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/mandala/approvals/pkg/audit"
	"github.com/mandala/approvals/pkg/automation"
	"github.com/mandala/approvals/pkg/eventbus"
	"github.com/mandala/approvals/pkg/notifier"
	"github.com/mandala/approvals/pkg/persistence"
	"github.com/mandala/approvals/pkg/reconciliation"
	"github.com/mandala/approvals/pkg/web"
	"github.com/mandala/approvals/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: store,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	recorder := audit.NewRecorder(a.persistence.Audit(), a.logger)
	notify := notifier.NewEventBusNotifier(a.eventBus, a.logger)

	matcher := workflow.NewMatcher(a.persistence.Workflows(), a.logger)
	automationEngine := automation.NewEngine(a.persistence.AutomationRules(), a.logger)
	engine := workflow.NewEngine(a.persistence, matcher, automationEngine, notify, recorder, a.logger)
	queue := workflow.NewQueue(a.persistence, engine, a.logger)
	delegations := workflow.NewDelegationManager(a.persistence.Delegations(), notify, recorder, a.logger)
	reconciliationService := reconciliation.NewService(a.persistence, a.eventBus, recorder, a.logger)

	handlers := web.NewAPIHandlers(
		engine,
		queue,
		delegations,
		reconciliationService,
		recorder,
		a.persistence,
		a.validate,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Approvals API")
	})

	approvals := app.Group("/approvals")
	approvals.Post("/", handlers.CreateApprovalRequest)
	approvals.Get("/queue", handlers.GetQueue)
	approvals.Post("/bulk", handlers.BulkAction)
	approvals.Get("/:id", handlers.GetApprovalRequest)
	approvals.Post("/:id/actions", handlers.ProcessAction)

	workflows := app.Group("/workflows")
	workflows.Get("/", handlers.GetWorkflows)
	workflows.Post("/", handlers.CreateWorkflow)
	workflows.Get("/:id", handlers.GetWorkflow)
	workflows.Delete("/:id", handlers.DeleteWorkflow)

	rules := app.Group("/rules")
	rules.Get("/", handlers.GetRules)
	rules.Post("/", handlers.CreateRule)
	rules.Delete("/:id", handlers.DeleteRule)

	delegationsGroup := app.Group("/delegations")
	delegationsGroup.Post("/", handlers.CreateDelegation)
	delegationsGroup.Delete("/:id", handlers.RevokeDelegation)

	recon := app.Group("/reconciliation")
	recon.Post("/runs", handlers.Reconcile)
	recon.Post("/daily", handlers.ReconcileDaily)
	recon.Get("/runs/:provider/:date", handlers.GetReconciliationRun)
	recon.Get("/entries/:provider/unresolved", handlers.ListUnresolved)
	recon.Post("/entries/:id/resolve", handlers.ResolveDiscrepancy)
	recon.Post("/settlements", handlers.ProcessSettlement)

	app.Get("/metrics", handlers.GetMetrics)
	app.Get("/compliance", handlers.GetComplianceReport)
	app.Get("/audit", handlers.GetAuditRecords)
	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
