package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/mandala/approvals/pkg/persistence"
	"github.com/mandala/approvals/pkg/reconciliation"
	"github.com/mandala/approvals/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleEngineError maps domain errors onto HTTP statuses.
func handleEngineError(c fiber.Ctx, err error) error {
	switch {
	case workflow.IsAuthorizationError(err):
		problem := problems.NewStatusProblem(403).
			WithInstance(c.Path()).
			WithType("forbidden").
			WithDetail(err.Error())

		return c.Status(fiber.StatusForbidden).JSON(problem)

	case workflow.IsValidationError(err) || errors.Is(err, reconciliation.ErrInvalidStrategy):
		return badRequest(c, err.Error())

	case workflow.IsConflictError(err),
		persistence.IsVersionConflict(err),
		errors.Is(err, reconciliation.ErrEntryNotOpen):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case persistence.IsNotFound(err):
		return notFound(c, err.Error())

	default:
		return internalError(c, err)
	}
}
