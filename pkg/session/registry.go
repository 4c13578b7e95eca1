package session

import (
	"sort"
	"time"

	"github.com/grovetools/mirror/pkg/models"
)

// DefaultErrorKey files reports that arrive without a category.
const DefaultErrorKey = "general"

// ErrorRegistry holds the latest error per category for display. A newer
// report for the same category replaces the older one.
type ErrorRegistry struct {
	entries map[string]models.ErrorReport
}

// NewErrorRegistry creates an empty registry.
func NewErrorRegistry() *ErrorRegistry {
	return &ErrorRegistry{entries: make(map[string]models.ErrorReport)}
}

// Record stores r and returns the key it was filed under.
func (r *ErrorRegistry) Record(rep models.ErrorReport) string {
	if rep.Key == "" {
		rep.Key = DefaultErrorKey
	}
	if rep.Timestamp == 0 {
		rep.Timestamp = time.Now().UnixMilli()
	}
	r.entries[rep.Key] = rep
	return rep.Key
}

// RecordError files a local failure under key.
func (r *ErrorRegistry) RecordError(key string, err error) string {
	return r.Record(models.ErrorReport{Key: key, Message: err.Error()})
}

// Get returns the report filed under key.
func (r *ErrorRegistry) Get(key string) (models.ErrorReport, bool) {
	rep, ok := r.entries[key]
	return rep, ok
}

// Clear removes the entry for key, reporting whether one existed.
func (r *ErrorRegistry) Clear(key string) bool {
	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// Keys returns the categories with an entry, sorted.
func (r *ErrorRegistry) Keys() []string {
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of categories with an entry.
func (r *ErrorRegistry) Len() int {
	return len(r.entries)
}
