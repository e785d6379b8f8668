package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/h7-kernel/application/config"
)

func TestGenerateSchema_SimpleStruct(t *testing.T) {
	type SimpleConfig struct {
		Device string `yaml:"device"`
		Baud   int    `yaml:"baud"`
	}

	schema, err := GenerateSchema(SimpleConfig{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(schema, &decoded))

	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "device")
	assert.Contains(t, props, "baud")
}

func TestGenerateSchema_Board(t *testing.T) {
	schema, err := GenerateSchema(config.Board{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(schema, &decoded))
	assert.Equal(t, "h7 board configuration", decoded["title"])

	props := decoded["properties"].(map[string]any)
	for _, section := range []string{"memory", "runtime", "storage", "serial", "log"} {
		assert.Contains(t, props, section)
	}

	memory := props["memory"].(map[string]any)
	assert.Contains(t, memory["properties"], "app_start")
	assert.Contains(t, memory["properties"], "heap_size")

	assert.Contains(t, string(schema), `"enforce"`)
	assert.Contains(t, string(schema), "First byte of the application region")
}
