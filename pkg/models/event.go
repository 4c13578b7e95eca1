package models

// Topic names a push channel.
type Topic string

const (
	TopicModels       Topic = "models"
	TopicErrors       Topic = "errors"
	TopicPlanOverview Topic = "plan-overview"
	TopicPlanApply    Topic = "plan-apply"
	TopicPlanCancel   Topic = "plan-cancel"
	TopicFile         Topic = "file"
)

// SessionTopics lists every topic a workspace session subscribes to.
var SessionTopics = []Topic{
	TopicModels,
	TopicErrors,
	TopicPlanOverview,
	TopicPlanApply,
	TopicPlanCancel,
	TopicFile,
}

// ErrorReport is an application error surfaced by the server on the errors topic.
type ErrorReport struct {
	Key         string `json:"key" mapstructure:"key"`
	Message     string `json:"message" mapstructure:"message"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Traceback   string `json:"traceback,omitempty" mapstructure:"traceback"`
	Timestamp   int64  `json:"timestamp,omitempty" mapstructure:"timestamp"`
}
