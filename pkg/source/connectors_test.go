package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfuse/graphfuse/pkg/config"
)

func TestAlfrescoEnumerateAndFetch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/-default-/public/alfresco/versions/1/nodes/-root-", func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		require.Equal(t, "admin", user)
		require.Equal(t, "secret", pass)
		require.Equal(t, "Shared/docs", r.URL.Query().Get("relativePath"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"entry": map[string]interface{}{"id": "folder-1", "name": "docs", "isFolder": true},
		})
	})
	mux.HandleFunc("/api/-default-/public/alfresco/versions/1/nodes/folder-1/children", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"list": map[string]interface{}{
				"entries": []interface{}{
					map[string]interface{}{"entry": map[string]interface{}{
						"id": "doc-1", "name": "report.txt", "isFile": true,
						"content": map[string]interface{}{"mimeType": "text/plain", "sizeInBytes": 11},
					}},
					map[string]interface{}{"entry": map[string]interface{}{
						"id": "doc-2", "name": "blob.bin", "isFile": true,
						"content": map[string]interface{}{"mimeType": "application/octet-stream", "sizeInBytes": 4},
					}},
					map[string]interface{}{"entry": map[string]interface{}{
						"id": "folder-2", "name": "empty", "isFolder": true,
					}},
				},
			},
		})
	})
	mux.HandleFunc("/api/-default-/public/alfresco/versions/1/nodes/folder-2/children", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"list": map[string]interface{}{"entries": []interface{}{}},
		})
	})
	mux.HandleFunc("/api/-default-/public/alfresco/versions/1/nodes/doc-1/content", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello world"))
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := NewAlfresco(config.AlfrescoConfig{
		URL:      srv.URL,
		Username: "admin",
		Password: "secret",
		Path:     "/Shared/docs",
	})

	// blob.bin has no conversion path and is dropped during the walk.
	refs, err := a.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "report.txt", refs[0].Name)
	assert.Equal(t, "text/plain", refs[0].Mime)

	data, err := a.Fetch(context.Background(), refs[0])
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestCMISEnumerateAndFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/root") {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("cmisselector") {
		case "object":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"object": map[string]interface{}{
					"succinctProperties": map[string]interface{}{
						"cmis:objectId":   "folder-1",
						"cmis:baseTypeId": "cmis:folder",
					},
				},
			})
		case "children":
			require.Equal(t, "folder-1", r.URL.Query().Get("objectId"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"objects": []interface{}{
					map[string]interface{}{"object": map[string]interface{}{
						"succinctProperties": map[string]interface{}{
							"cmis:objectId":              "doc-1",
							"cmis:name":                  "notes.txt",
							"cmis:baseTypeId":            "cmis:document",
							"cmis:contentStreamMimeType": "text/plain",
							"cmis:contentStreamLength":   float64(9),
						},
					}},
					map[string]interface{}{"object": map[string]interface{}{
						"succinctProperties": map[string]interface{}{
							"cmis:objectId":              "doc-2",
							"cmis:name":                  "blob.bin",
							"cmis:baseTypeId":            "cmis:document",
							"cmis:contentStreamMimeType": "application/octet-stream",
							"cmis:contentStreamLength":   float64(4),
						},
					}},
				},
			})
		case "content":
			require.Equal(t, "doc-1", r.URL.Query().Get("objectId"))
			_, _ = w.Write([]byte("cmis body"))
		default:
			http.Error(w, "bad selector", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := NewCMIS(config.CMISConfig{
		URL:        srv.URL,
		Username:   "admin",
		Password:   "admin",
		FolderPath: "/Shared",
	})

	// blob.bin has no conversion path and is dropped during the walk.
	refs, err := c.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "notes.txt", refs[0].Name)
	assert.Equal(t, int64(9), refs[0].Size)

	data, err := c.Fetch(context.Background(), refs[0])
	require.NoError(t, err)
	assert.Equal(t, "cmis body", string(data))
}

func TestCMISEnumerateSingleDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("cmisselector") {
		case "object":
			require.Equal(t, "/Shared/notes.txt", r.URL.Query().Get("objectPath"))
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"object": map[string]interface{}{
					"succinctProperties": map[string]interface{}{
						"cmis:objectId":              "doc-1",
						"cmis:name":                  "notes.txt",
						"cmis:baseTypeId":            "cmis:document",
						"cmis:contentStreamMimeType": "text/plain",
						"cmis:contentStreamLength":   float64(9),
					},
				},
			})
		default:
			t.Errorf("unexpected selector %q", r.URL.Query().Get("cmisselector"))
			http.Error(w, "unexpected", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	c := NewCMIS(config.CMISConfig{URL: srv.URL, FolderPath: "/Shared/notes.txt"})

	refs, err := c.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "doc-1", refs[0].ID)
	assert.Equal(t, "notes.txt", refs[0].Name)
}

func TestCMISServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCMIS(config.CMISConfig{URL: srv.URL, FolderPath: "/x"})
	_, err := c.Enumerate(context.Background())
	assert.Error(t, err)
}
