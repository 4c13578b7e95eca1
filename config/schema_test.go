package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &schema))

	assert.Equal(t, "Mirror Configuration", schema["title"])
	assert.Equal(t, true, schema["additionalProperties"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	for _, key := range []string{"version", "server", "channel", "plan", "workspace", "state", "logging", "telemetry"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, props, "Extensions")
	assert.NotContains(t, props, "Sources")
}

func TestSchemaValidator(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	require.NoError(t, v.Validate(map[string]interface{}{
		"server":  map[string]interface{}{"url": "http://localhost:8000"},
		"channel": map[string]interface{}{"transport": "websocket"},
		"custom":  map[string]interface{}{"anything": 1},
	}))

	err = v.Validate(map[string]interface{}{
		"plan": map[string]interface{}{"skip_tests": "yes"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/plan/skip_tests")
}
