package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/lettermill/platform/internal/api/response"
	"github.com/lettermill/platform/internal/migrate"
	"github.com/lettermill/platform/internal/model"
)

// Migrator covers the runner operations exposed over the API.
type Migrator interface {
	RunPending(ctx context.Context) (*model.MigrationResult, error)
	Status(ctx context.Context) (*model.MigrationStatus, error)
	RollbackLast(ctx context.Context) (*model.RollbackResult, error)
}

type Migration struct {
	runner Migrator
}

func NewMigration(runner Migrator) *Migration {
	return &Migration{runner: runner}
}

func (h *Migration) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RunPending(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

func (h *Migration) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.runner.Status(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, status)
}

func (h *Migration) Rollback(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.RollbackLast(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, migrate.ErrNothingToRollback):
			response.WriteError(w, http.StatusConflict, err.Error())
		case errors.Is(err, migrate.ErrRollbackScriptMissing):
			response.WriteError(w, http.StatusConflict, err.Error())
		default:
			// a failed rollback execution still carries a result
			if result != nil {
				response.WriteJSON(w, http.StatusInternalServerError, result)
				return
			}
			response.WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}
