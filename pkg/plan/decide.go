package plan

// Action is a side effect requested by Decide.
type Action string

const (
	ActionFetchEnvironments   Action = "fetch_environments"
	ActionRefreshEnvironments Action = "refresh_environments"
	ActionRunPlan             Action = "run_plan"
)

// State is everything the run policy looks at.
type State struct {
	// ModelsGen increments whenever the model set changes; zero means no
	// models have been seen.
	ModelsGen uint64
	// EnvFetchModelsGen is the ModelsGen the last environment fetch was
	// issued for.
	EnvFetchModelsGen uint64
	EnvFetchInFlight  bool

	// EnvironmentsSynced is set once any environment fetch has succeeded.
	EnvironmentsSynced bool
	// EnvGen increments whenever fetched environment metadata changes to a
	// non-empty value.
	EnvGen uint64

	RunInFlight bool
	// LastRunGen is the EnvGen the most recent run request served.
	LastRunGen uint64
	HasRun     bool

	RunningPlan   bool
	CancelRunning bool

	// PromotionPending is set by a successful Apply update carrying a
	// promotion target and cleared once the refresh is issued.
	PromotionPending bool
}

// Decide returns the actions due in state s. It is idempotent: feeding the
// same state twice yields the same actions, and callers must record an
// action's in-flight flag before evaluating again.
func Decide(s State) []Action {
	var actions []Action

	if s.ModelsGen > 0 && !s.EnvironmentsSynced && !s.EnvFetchInFlight && s.EnvFetchModelsGen < s.ModelsGen {
		actions = append(actions, ActionFetchEnvironments)
	}

	if s.PromotionPending && !s.EnvFetchInFlight {
		actions = append(actions, ActionRefreshEnvironments)
	}

	if !s.RunInFlight && !s.CancelRunning {
		fresh := s.EnvGen > 0 && !s.RunningPlan && s.LastRunGen < s.EnvGen
		reattach := s.EnvironmentsSynced && !s.HasRun
		if fresh || reattach {
			actions = append(actions, ActionRunPlan)
		}
	}

	return actions
}
