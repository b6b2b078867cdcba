package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/lettermill/platform/internal/api/request"
	"github.com/lettermill/platform/internal/api/response"
	"github.com/lettermill/platform/internal/deploy"
	"github.com/lettermill/platform/internal/model"
)

// Deployer is the slice of the orchestrator the handler needs.
type Deployer interface {
	Deploy(ctx context.Context, cfg model.DeploymentConfig) (*model.DeploymentResult, error)
	CurrentStatus(ctx context.Context) (*model.DeploymentStatus, error)
}

// DeploymentHistory reads past deployment records.
type DeploymentHistory interface {
	History(ctx context.Context, limit int) ([]model.DeploymentRecord, error)
}

type Deployment struct {
	orch   Deployer
	ledger DeploymentHistory
}

func NewDeployment(orch Deployer, ledger DeploymentHistory) *Deployment {
	return &Deployment{orch: orch, ledger: ledger}
}

// Create runs the deployment pipeline synchronously and returns the full
// step-by-step result.
func (h *Deployment) Create(w http.ResponseWriter, r *http.Request) {
	var req model.DeploymentConfig
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.orch.Deploy(r.Context(), req)
	if err != nil {
		if errors.Is(err, deploy.ErrDeployInProgress) {
			response.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

func (h *Deployment) List(w http.ResponseWriter, r *http.Request) {
	limit := request.QueryInt(r, "limit", 20)
	history, err := h.ledger.History(r.Context(), limit)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, history)
}

func (h *Deployment) Current(w http.ResponseWriter, r *http.Request) {
	status, err := h.orch.CurrentStatus(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status == nil {
		response.WriteError(w, http.StatusNotFound, "no deployments recorded")
		return
	}

	response.WriteJSON(w, http.StatusOK, status)
}
