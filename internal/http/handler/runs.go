package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"voicebook/internal/model"
	"voicebook/internal/repository"
)

const maxRunsLimit = 100

type runsPage struct {
	Items  []model.Run `json:"data"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ListRuns godoc
// @Summary List pipeline runs
// @Description Newest first. Empty when no database is configured.
// @Tags runs
// @Produce json
// @Param limit query int false "page size (1-100)" default(10)
// @Param offset query int false "rows to skip" default(0)
// @Success 200 {object} handler.runsPage
// @Failure 400 {object} handler.errorPayload
// @Router /api/runs [get]
func ListRuns(runs repository.RunRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil || limit < 1 || limit > maxRunsLimit {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil || offset < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		page, err := runs.List(c.UserContext(), repository.PageQuery{Limit: limit, Offset: offset})
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(runsPage{Items: page.Items, Total: page.Total, Limit: limit, Offset: offset})
	}
}

// GetRun godoc
// @Summary Get a pipeline run
// @Tags runs
// @Produce json
// @Param id path string true "run id (uuid)"
// @Success 200 {object} model.Run
// @Failure 400 {object} handler.errorPayload
// @Failure 404 {object} handler.errorPayload
// @Router /api/runs/{id} [get]
func GetRun(runs repository.RunRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		run, err := runs.FindByID(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, repository.ErrRunNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "run not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(run)
	}
}
