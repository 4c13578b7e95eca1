package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChangeKind(t *testing.T) {
	tests := []struct {
		in   string
		want ChangeKind
		ok   bool
	}{
		{"Added", ChangeAdded, true},
		{"modified", ChangeModified, true},
		{" DELETED ", ChangeDeleted, true},
		{"renamed", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseChangeKind(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestEnvironmentsResponse(t *testing.T) {
	resp := EnvironmentsResponse{
		Environments: map[string]Environment{
			"prod": {Name: "prod"},
			"dev":  {Name: "dev"},
		},
		PinnedEnvironments: []string{"prod"},
	}
	assert.Equal(t, []string{"dev", "prod"}, resp.Names())
	assert.True(t, resp.IsPinned("prod"))
	assert.False(t, resp.IsPinned("dev"))
}

func TestFileEventEmpty(t *testing.T) {
	assert.True(t, FileEvent{}.Empty())
	assert.False(t, FileEvent{Changes: []FileChange{{Change: ChangeDeleted, Path: "a"}}}.Empty())
}
