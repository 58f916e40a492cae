package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/convert"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

// CMIS reads documents from a CMIS 1.1 repository through the Browser
// binding (JSON over HTTP).
type CMIS struct {
	cfg    config.CMISConfig
	client *http.Client
}

func NewCMIS(cfg config.CMISConfig) *CMIS {
	return &CMIS{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type cmisObject struct {
	Object struct {
		SuccinctProperties map[string]interface{} `json:"succinctProperties"`
	} `json:"object"`
}

type cmisChildren struct {
	Objects []cmisObject `json:"objects"`
}

// Enumerate resolves the configured path, which may name a folder to
// walk or a single document to yield directly.
func (c *CMIS) Enumerate(ctx context.Context) ([]domain.DocumentRef, error) {
	obj, err := c.objectByPath(ctx, c.cfg.FolderPath)
	if err != nil {
		return nil, err
	}

	props := obj.Object.SuccinctProperties
	id, _ := props["cmis:objectId"].(string)
	if baseType, _ := props["cmis:baseTypeId"].(string); baseType == "cmis:document" {
		return []domain.DocumentRef{cmisDocRef(props)}, nil
	}
	return c.listFolder(ctx, id)
}

func (c *CMIS) objectByPath(ctx context.Context, path string) (cmisObject, error) {
	q := url.Values{}
	q.Set("cmisselector", "object")
	q.Set("objectPath", path)
	q.Set("succinct", "true")

	var obj cmisObject
	if err := c.getJSON(ctx, c.cfg.URL+"/root?"+q.Encode(), &obj); err != nil {
		return cmisObject{}, err
	}
	if id, _ := obj.Object.SuccinctProperties["cmis:objectId"].(string); id == "" {
		return cmisObject{}, fmt.Errorf("%w: cmis path %s not found", domain.ErrBackendIO, path)
	}
	return obj, nil
}

func (c *CMIS) listFolder(ctx context.Context, folderID string) ([]domain.DocumentRef, error) {
	q := url.Values{}
	q.Set("cmisselector", "children")
	q.Set("objectId", folderID)
	q.Set("succinct", "true")

	var children cmisChildren
	if err := c.getJSON(ctx, c.cfg.URL+"/root?"+q.Encode(), &children); err != nil {
		return nil, err
	}

	var refs []domain.DocumentRef
	for _, child := range children.Objects {
		props := child.Object.SuccinctProperties
		baseType, _ := props["cmis:baseTypeId"].(string)
		id, _ := props["cmis:objectId"].(string)
		name, _ := props["cmis:name"].(string)

		switch baseType {
		case "cmis:folder":
			sub, err := c.listFolder(ctx, id)
			if err != nil {
				return nil, err
			}
			refs = append(refs, sub...)
		case "cmis:document":
			// Folder walks skip what cannot be converted, like the
			// filesystem source does.
			if !convert.Supported(name) {
				continue
			}
			refs = append(refs, cmisDocRef(props))
		}
	}
	return refs, nil
}

func cmisDocRef(props map[string]interface{}) domain.DocumentRef {
	id, _ := props["cmis:objectId"].(string)
	name, _ := props["cmis:name"].(string)
	mime, _ := props["cmis:contentStreamMimeType"].(string)
	size, _ := props["cmis:contentStreamLength"].(float64)
	return domain.DocumentRef{
		ID:   id,
		Name: name,
		Mime: mime,
		Size: int64(size),
	}
}

// Fetch streams the content to a private temp file, reads it back and
// removes it, so large downloads never sit fully in the HTTP buffer.
func (c *CMIS) Fetch(ctx context.Context, ref domain.DocumentRef) ([]byte, error) {
	q := url.Values{}
	q.Set("cmisselector", "content")
	q.Set("objectId", ref.ID)

	resp, err := c.get(ctx, c.cfg.URL+"/root?"+q.Encode())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return spoolToTemp(resp.Body, "cmis-*")
}

func (c *CMIS) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: cmis request failed: %v", domain.ErrBackendIO, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: cmis returned %d: %s", domain.ErrBackendIO, resp.StatusCode, body)
	}
	return resp, nil
}

func (c *CMIS) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding cmis response: %v", domain.ErrBackendIO, err)
	}
	return nil
}

// spoolToTemp writes r to a temp file, reads the bytes back and deletes
// the file before returning.
func spoolToTemp(r io.Reader, pattern string) ([]byte, error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}
	name := tmp.Name()
	defer func() { _ = os.Remove(name) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("%w: downloading content: %v", domain.ErrBackendIO, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}
	return data, nil
}
