package session

import (
	"context"

	"github.com/grovetools/mirror/pkg/models"
	"github.com/grovetools/mirror/pkg/request"
)

// executor issues the orchestrator's requests through the session's
// dispatcher so their completions land back on the event loop.
type executor struct {
	s *Session
}

func (e executor) FetchEnvironments() {
	s := e.s
	request.Go(s.dispatcher, request.CallFetchEnvironments, s.svc.FetchEnvironments,
		func(resp models.EnvironmentsResponse, err error) {
			if err != nil {
				s.recordError("environments", err)
				s.orch.HandleEnvironmentsFailed(err)
				return
			}
			s.errs.Clear("environments")
			s.orch.HandleEnvironments(resp)
		})
}

func (e executor) RunPlan(req models.PlanRunRequest) {
	s := e.s
	request.Go(s.dispatcher, request.CallRunPlan,
		func(ctx context.Context) (*models.PlanRunResponse, error) {
			return s.svc.RunPlan(ctx, req)
		},
		func(resp *models.PlanRunResponse, err error) {
			if err != nil {
				s.recordError("plan", err)
			}
			s.orch.HandlePlanRunDone(resp, err)
		})
}
