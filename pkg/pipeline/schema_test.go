package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema(t *testing.T) {
	t.Parallel()

	s := Schema()
	raw, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "object", decoded["type"])
	assert.Equal(t, false, decoded["additionalProperties"])
	assert.NotContains(t, decoded, "required")

	properties, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"name", "schedule", "default_args", "upstream", "source", "destination", "strategy", "batch_size"} {
		assert.Contains(t, properties, key)
	}

	strategy, ok := properties["strategy"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"pushdown", "in_memory"}, strategy["enum"])
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "empty document",
			content: "",
		},
		{
			name: "valid document",
			content: `
name: session_summary
start_date: 2024-01-01
default_args:
  retries: 2
  retry_delay: 1m30s
upstream:
  timeout: 10m
  sensor:
    type: none
`,
		},
		{
			name:    "unknown top level key",
			content: "nme: session_summary",
			wantErr: "Additional property nme is not allowed",
		},
		{
			name:    "unknown sensor type",
			content: "upstream:\n  sensor:\n    type: http",
			wantErr: "upstream.sensor.type",
		},
		{
			name:    "invalid duration",
			content: "upstream:\n  timeout: ten minutes",
			wantErr: "upstream.timeout",
		},
		{
			name:    "broken YAML",
			content: "name: [",
			wantErr: "invalid YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateDocument([]byte(tt.content))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
