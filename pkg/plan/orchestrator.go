package plan

import (
	"reflect"

	"github.com/grovetools/mirror/pkg/models"
	"github.com/sirupsen/logrus"
)

// DefaultTargetEnvironment is used when neither the configuration nor the
// server names a target.
const DefaultTargetEnvironment = "prod"

// Executor performs the requests the orchestrator decides on. Completions
// are reported back through HandleEnvironments, HandleEnvironmentsFailed
// and HandlePlanRunDone on the same goroutine that drives the orchestrator.
type Executor interface {
	FetchEnvironments()
	RunPlan(req models.PlanRunRequest)
}

// Options configure run-plan requests.
type Options struct {
	TargetEnvironment string
	models.PlanOptions
}

// Orchestrator owns the Overview, Apply and Cancel trackers and evaluates
// the run policy after every state change. It is not safe for concurrent use.
type Orchestrator struct {
	Overview *Tracker
	Apply    *Tracker
	Cancel   *Tracker

	exec   Executor
	opts   Options
	logger *logrus.Entry

	models []models.Model
	envs   models.EnvironmentsResponse
	state  State
	closed bool
}

// NewOrchestrator creates an orchestrator with idle trackers.
func NewOrchestrator(exec Executor, opts Options, logger *logrus.Entry) *Orchestrator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Orchestrator{
		Overview: NewTracker(models.TopicPlanOverview),
		Apply:    NewTracker(models.TopicPlanApply),
		Cancel:   NewTracker(models.TopicPlanCancel),
		exec:     exec,
		opts:     opts,
		logger:   logger,
	}
}

// IsRunningPlan reports whether an apply is in progress.
func (o *Orchestrator) IsRunningPlan() bool {
	return o.Apply.Running()
}

// State returns a copy of the policy state.
func (o *Orchestrator) State() State {
	s := o.state
	s.RunningPlan = o.IsRunningPlan()
	s.CancelRunning = o.Cancel.Running()
	return s
}

// Models returns the last model set received.
func (o *Orchestrator) Models() []models.Model {
	return o.models
}

// Environments returns the last environment metadata fetched.
func (o *Orchestrator) Environments() models.EnvironmentsResponse {
	return o.envs
}

// Tracker returns the tracker fed by topic, or nil.
func (o *Orchestrator) Tracker(topic models.Topic) *Tracker {
	switch topic {
	case models.TopicPlanOverview:
		return o.Overview
	case models.TopicPlanApply:
		return o.Apply
	case models.TopicPlanCancel:
		return o.Cancel
	}
	return nil
}

// HandleModels records the model set from fetch-models or the models topic.
func (o *Orchestrator) HandleModels(ms []models.Model) {
	if o.closed {
		return
	}
	if len(ms) > 0 && !reflect.DeepEqual(ms, o.models) {
		o.state.ModelsGen++
	}
	o.models = ms
	o.evaluate()
}

// HandleEnvironments records a successful environment fetch.
func (o *Orchestrator) HandleEnvironments(resp models.EnvironmentsResponse) {
	if o.closed {
		return
	}
	o.state.EnvFetchInFlight = false
	o.state.EnvironmentsSynced = true
	if len(resp.Environments) > 0 && !reflect.DeepEqual(resp, o.envs) {
		o.state.EnvGen++
	}
	o.envs = resp
	o.logger.WithFields(logrus.Fields{
		"environments": len(resp.Environments),
		"generation":   o.state.EnvGen,
	}).Debug("Environments synchronized")
	o.evaluate()
}

// HandleEnvironmentsFailed clears the in-flight fetch. A failed fetch is
// not retried until the model set changes.
func (o *Orchestrator) HandleEnvironmentsFailed(err error) {
	if o.closed {
		return
	}
	o.state.EnvFetchInFlight = false
	o.logger.WithError(err).Warn("Environment fetch failed")
	o.evaluate()
}

// HandlePlanRunDone clears the in-flight run request. Progress itself
// arrives on the tracker topics.
func (o *Orchestrator) HandlePlanRunDone(resp *models.PlanRunResponse, err error) {
	if o.closed {
		return
	}
	o.state.RunInFlight = false
	switch {
	case err != nil:
		o.logger.WithError(err).Warn("Plan run request failed")
	case resp != nil:
		o.logger.WithFields(logrus.Fields{
			"environment": resp.Environment,
			"plan_id":     resp.PlanID,
		}).Debug("Plan run accepted")
	}
	o.evaluate()
}

// HandleTracker applies an update from one of the plan topics.
func (o *Orchestrator) HandleTracker(topic models.Topic, u models.TrackerUpdate) error {
	if o.closed {
		return nil
	}
	tracker := o.Tracker(topic)
	if tracker == nil {
		return nil
	}
	applied, err := tracker.Update(u)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if topic == models.TopicPlanApply && u.Done && u.Succeeded() && u.Promote != "" {
		o.state.PromotionPending = true
	}
	o.logger.WithFields(logrus.Fields{
		"topic": topic,
		"phase": tracker.Phase,
		"done":  u.Done,
	}).Debug("Tracker updated")
	o.evaluate()
	return nil
}

// Close makes every handler a no-op so late completions cannot mutate
// state after teardown.
func (o *Orchestrator) Close() {
	o.closed = true
}

// evaluate executes one due action at a time and re-decides after each, so an
// executor that completes synchronously cannot cause a stale action to run.
func (o *Orchestrator) evaluate() {
	for !o.closed {
		actions := Decide(o.State())
		if len(actions) == 0 {
			return
		}
		switch actions[0] {
		case ActionFetchEnvironments:
			o.state.EnvFetchInFlight = true
			o.state.EnvFetchModelsGen = o.state.ModelsGen
			o.logger.Debug("Fetching environments")
			o.exec.FetchEnvironments()
		case ActionRefreshEnvironments:
			o.state.PromotionPending = false
			o.state.EnvFetchInFlight = true
			o.logger.WithField("promote", o.Apply.Promote).Info("Refreshing environments after promotion")
			o.exec.FetchEnvironments()
		case ActionRunPlan:
			o.state.RunInFlight = true
			o.state.LastRunGen = o.state.EnvGen
			o.state.HasRun = true
			req := o.runRequest()
			o.logger.WithField("environment", req.Environment).Info("Requesting plan run")
			o.exec.RunPlan(req)
		}
	}
}

func (o *Orchestrator) runRequest() models.PlanRunRequest {
	target := o.opts.TargetEnvironment
	if target == "" {
		target = o.envs.DefaultTargetEnvironment
	}
	if target == "" {
		target = DefaultTargetEnvironment
	}
	return models.PlanRunRequest{Environment: target, PlanOptions: o.opts.PlanOptions}
}
