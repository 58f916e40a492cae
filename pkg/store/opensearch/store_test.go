package opensearch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseMapping(t *testing.T, mapping string) (map[string]any, map[string]any) {
	t.Helper()
	var parsed struct {
		Settings map[string]any `json:"settings"`
		Mappings struct {
			Properties map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal([]byte(mapping), &parsed))
	return parsed.Settings, parsed.Mappings.Properties
}

func TestIndexMappingWithVectors(t *testing.T) {
	settings, props := parseMapping(t, indexMapping(1024))

	assert.Equal(t, true, settings["index.knn"])
	embedding, ok := props["embedding"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "knn_vector", embedding["type"])
	assert.Equal(t, float64(1024), embedding["dimension"])
}

func TestIndexMappingSearchOnly(t *testing.T) {
	settings, props := parseMapping(t, indexMapping(0))

	assert.Nil(t, settings)
	assert.NotContains(t, props, "embedding")
	assert.Contains(t, props, "content")
}
