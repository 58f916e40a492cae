package elastic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mappingProperties(t *testing.T, mapping string) map[string]any {
	t.Helper()
	var parsed struct {
		Mappings struct {
			Properties map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal([]byte(mapping), &parsed))
	return parsed.Mappings.Properties
}

func TestIndexMappingWithVectors(t *testing.T) {
	props := mappingProperties(t, indexMapping(768))

	embedding, ok := props["embedding"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "dense_vector", embedding["type"])
	assert.Equal(t, float64(768), embedding["dims"])
}

func TestIndexMappingSearchOnly(t *testing.T) {
	props := mappingProperties(t, indexMapping(0))

	assert.NotContains(t, props, "embedding")
	assert.Contains(t, props, "content")
}
