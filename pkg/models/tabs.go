package models

// TabRecord is the persisted form of one open editor tab.
type TabRecord struct {
	ID      string `json:"id" yaml:"id"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
}

// TabState is everything persisted about open tabs between sessions.
type TabState struct {
	Tabs     []TabRecord `json:"tabs" yaml:"tabs"`
	ActiveID string      `json:"active_id,omitempty" yaml:"active_id,omitempty"`
}

// Empty reports whether there is nothing to restore.
func (s TabState) Empty() bool {
	return len(s.Tabs) == 0 && s.ActiveID == ""
}
