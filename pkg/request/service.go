// Package request issues cancellable request/response calls against the
// workspace server.
package request

import (
	"context"

	"github.com/grovetools/mirror/pkg/models"
)

// Call names used in logs and errors.
const (
	CallFetchModels       = "fetch-models"
	CallFetchFiles        = "fetch-files"
	CallFetchEnvironments = "fetch-environments"
	CallRunPlan           = "run-plan"
)

// Service is the set of calls a session needs. Every call honours ctx
// cancellation.
type Service interface {
	FetchModels(ctx context.Context) ([]models.Model, error)
	FetchFiles(ctx context.Context) (models.DirectoryPayload, error)
	FetchEnvironments(ctx context.Context) (models.EnvironmentsResponse, error)
	RunPlan(ctx context.Context, req models.PlanRunRequest) (*models.PlanRunResponse, error)
}
