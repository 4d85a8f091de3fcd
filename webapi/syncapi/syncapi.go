// Package syncapi exposes the sync orchestrator and its bookkeeping over HTTP.
package syncapi

import (
	"github.com/amirasaad/splitsync/pkg/domain"
	"github.com/amirasaad/splitsync/pkg/orchestrator"
	"github.com/amirasaad/splitsync/pkg/repository"
	"github.com/amirasaad/splitsync/webapi/common"
	"github.com/gofiber/fiber/v2"
)

// Routes registers the sync endpoints.
func Routes(app *fiber.App, orch *orchestrator.Orchestrator, metadata repository.MetadataStore) {
	group := app.Group("/api/sync")
	group.Post("/", StartSync(orch))
	group.Get("/state", GetState(orch))
	group.Get("/metadata", ListMetadata(metadata))
	group.Get("/metadata/failed", ListFailed(metadata))
}

// StartSync runs one orchestration pass and reports the final state.
// @Summary Run a sync pass
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} common.Response
// @Failure 409 {object} common.ProblemDetails
// @Failure 502 {object} common.ProblemDetails
// @Failure 503 {object} common.ProblemDetails
// @Router /api/sync [post]
func StartSync(orch *orchestrator.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req StartRequest
		if len(c.Body()) > 0 {
			input, err := common.BindAndValidate[StartRequest](c)
			if input == nil {
				return err // error response already written
			}
			req = *input
		}
		if c.QueryBool("force") {
			req.Force = true
		}

		if err := orch.StartSync(c.UserContext(), req.Force); err != nil {
			status := common.ErrorToStatusCode(err)
			if status == fiber.StatusInternalServerError {
				status = fiber.StatusBadGateway
			}
			return common.ProblemDetailsJSON(c, "Sync pass failed", err, status)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Sync pass completed", ToStateResponse(orch.State()))
	}
}

// GetState returns the current orchestrator state.
// @Summary Current sync state
// @Tags sync
// @Produce json
// @Success 200 {object} common.Response
// @Router /api/sync/state [get]
func GetState(orch *orchestrator.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Sync state fetched", ToStateResponse(orch.State()))
	}
}

// ListMetadata returns the bookkeeping row of every entity type.
// @Summary List sync metadata
// @Tags sync
// @Produce json
// @Success 200 {object} common.Response
// @Failure 500 {object} common.ProblemDetails
// @Router /api/sync/metadata [get]
func ListMetadata(metadata repository.MetadataStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := metadata.List(c.UserContext())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list sync metadata", err)
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Sync metadata fetched", rows)
	}
}

// ListFailed returns the entity types whose last pass failed.
// @Summary List failed entity types
// @Tags sync
// @Produce json
// @Success 200 {object} common.Response
// @Failure 500 {object} common.ProblemDetails
// @Router /api/sync/metadata/failed [get]
func ListFailed(metadata repository.MetadataStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := metadata.ListFailed(c.UserContext())
		if err != nil {
			return common.ProblemDetailsJSON(c, "Failed to list failed entities", err)
		}
		if rows == nil {
			rows = []domain.SyncMetadata{}
		}
		return common.SuccessResponseJSON(c, fiber.StatusOK, "Failed entities fetched", rows)
	}
}
