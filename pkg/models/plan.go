package models

import "sort"

// Model is a project model as listed by fetch-models and the models topic.
type Model struct {
	Name        string            `json:"name" mapstructure:"name"`
	Path        string            `json:"path" mapstructure:"path"`
	Dialect     string            `json:"dialect,omitempty" mapstructure:"dialect"`
	Type        string            `json:"type,omitempty" mapstructure:"type"`
	Description string            `json:"description,omitempty" mapstructure:"description"`
	Columns     map[string]string `json:"columns,omitempty" mapstructure:"columns"`
}

// Environment is a named deployment target.
type Environment struct {
	Name        string `json:"name" mapstructure:"name"`
	Type        string `json:"type,omitempty" mapstructure:"type"`
	CreatedFrom string `json:"created_from,omitempty" mapstructure:"created_from"`
	Plan        string `json:"plan_id,omitempty" mapstructure:"plan_id"`
	Start       int64  `json:"start_at,omitempty" mapstructure:"start_at"`
	End         int64  `json:"end_at,omitempty" mapstructure:"end_at"`
}

// EnvironmentsResponse is the result of fetch-environments.
type EnvironmentsResponse struct {
	Environments             map[string]Environment `json:"environments" mapstructure:"environments"`
	DefaultTargetEnvironment string                 `json:"default_target_environment" mapstructure:"default_target_environment"`
	PinnedEnvironments       []string               `json:"pinned_environments,omitempty" mapstructure:"pinned_environments"`
}

// Names returns the environment names in ascending order.
func (r EnvironmentsResponse) Names() []string {
	names := make([]string, 0, len(r.Environments))
	for name := range r.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsPinned reports whether name is one of the pinned environments.
func (r EnvironmentsResponse) IsPinned(name string) bool {
	for _, p := range r.PinnedEnvironments {
		if p == name {
			return true
		}
	}
	return false
}

// PlanOptions are the user-selectable run-plan switches.
type PlanOptions struct {
	SkipTests         bool `json:"skip_tests" yaml:"skip_tests" toml:"skip_tests" mapstructure:"skip_tests"`
	IncludeUnmodified bool `json:"include_unmodified" yaml:"include_unmodified" toml:"include_unmodified" mapstructure:"include_unmodified"`
}

// PlanRunRequest is the body of run-plan.
type PlanRunRequest struct {
	Environment string `json:"environment"`
	PlanOptions
}

// PlanRunResponse acknowledges a run-plan call. Progress arrives on the
// tracker topics, not here.
type PlanRunResponse struct {
	Environment string         `json:"environment" mapstructure:"environment"`
	PlanID      string         `json:"plan_id,omitempty" mapstructure:"plan_id"`
	Meta        map[string]any `json:"meta,omitempty" mapstructure:"meta"`
}

// TrackerStatus is the outcome reported by a tracker update.
type TrackerStatus string

const (
	TrackerInit    TrackerStatus = "init"
	TrackerSuccess TrackerStatus = "success"
	TrackerFail    TrackerStatus = "fail"
)

// TrackerUpdate is one progress message on plan-overview, plan-apply or plan-cancel.
type TrackerUpdate struct {
	Done    bool           `json:"done" mapstructure:"done"`
	Status  TrackerStatus  `json:"status,omitempty" mapstructure:"status"`
	Promote string         `json:"promote,omitempty" mapstructure:"promote"`
	Start   int64          `json:"start,omitempty" mapstructure:"start"`
	End     int64          `json:"end,omitempty" mapstructure:"end"`
	Meta    map[string]any `json:"meta,omitempty" mapstructure:"meta"`
}

// Succeeded reports whether the update carries a success outcome.
func (u TrackerUpdate) Succeeded() bool {
	return u.Status == TrackerSuccess
}
