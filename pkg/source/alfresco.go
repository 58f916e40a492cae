package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/convert"
	"github.com/graphfuse/graphfuse/pkg/domain"
)

const alfrescoAPIBase = "/api/-default-/public/alfresco/versions/1"

// Alfresco reads documents through the Alfresco Core REST API.
type Alfresco struct {
	cfg    config.AlfrescoConfig
	client *http.Client
}

func NewAlfresco(cfg config.AlfrescoConfig) *Alfresco {
	return &Alfresco{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type alfrescoNode struct {
	Entry struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		IsFile   bool   `json:"isFile"`
		IsFolder bool   `json:"isFolder"`
		Content  struct {
			MimeType    string `json:"mimeType"`
			SizeInBytes int64  `json:"sizeInBytes"`
		} `json:"content"`
	} `json:"entry"`
}

type alfrescoChildren struct {
	List struct {
		Entries []alfrescoNode `json:"entries"`
	} `json:"list"`
}

func (a *Alfresco) Enumerate(ctx context.Context) ([]domain.DocumentRef, error) {
	root, err := a.nodeByPath(ctx, a.cfg.Path)
	if err != nil {
		return nil, err
	}
	if root.Entry.IsFile {
		return []domain.DocumentRef{nodeRef(root)}, nil
	}
	return a.listChildren(ctx, root.Entry.ID)
}

func (a *Alfresco) nodeByPath(ctx context.Context, path string) (alfrescoNode, error) {
	q := url.Values{}
	q.Set("relativePath", strings.TrimPrefix(path, "/"))

	var node alfrescoNode
	err := a.getJSON(ctx, a.cfg.URL+alfrescoAPIBase+"/nodes/-root-?"+q.Encode(), &node)
	if err != nil {
		return alfrescoNode{}, err
	}
	if node.Entry.ID == "" {
		return alfrescoNode{}, fmt.Errorf("%w: alfresco path %s not found", domain.ErrBackendIO, path)
	}
	return node, nil
}

func (a *Alfresco) listChildren(ctx context.Context, nodeID string) ([]domain.DocumentRef, error) {
	var children alfrescoChildren
	err := a.getJSON(ctx, a.cfg.URL+alfrescoAPIBase+"/nodes/"+nodeID+"/children?maxItems=1000", &children)
	if err != nil {
		return nil, err
	}

	var refs []domain.DocumentRef
	for _, child := range children.List.Entries {
		switch {
		case child.Entry.IsFolder:
			sub, err := a.listChildren(ctx, child.Entry.ID)
			if err != nil {
				return nil, err
			}
			refs = append(refs, sub...)
		case child.Entry.IsFile:
			// Folder walks skip what cannot be converted, like the
			// filesystem source does.
			if !convert.Supported(child.Entry.Name) {
				continue
			}
			refs = append(refs, nodeRef(child))
		}
	}
	return refs, nil
}

func (a *Alfresco) Fetch(ctx context.Context, ref domain.DocumentRef) ([]byte, error) {
	resp, err := a.get(ctx, a.cfg.URL+alfrescoAPIBase+"/nodes/"+ref.ID+"/content")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return spoolToTemp(resp.Body, "alfresco-*")
}

func (a *Alfresco) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}
	req.SetBasicAuth(a.cfg.Username, a.cfg.Password)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: alfresco request failed: %v", domain.ErrBackendIO, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: alfresco returned %d: %s", domain.ErrBackendIO, resp.StatusCode, body)
	}
	return resp, nil
}

func (a *Alfresco) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	resp, err := a.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding alfresco response: %v", domain.ErrBackendIO, err)
	}
	return nil
}

func nodeRef(n alfrescoNode) domain.DocumentRef {
	return domain.DocumentRef{
		ID:   n.Entry.ID,
		Name: n.Entry.Name,
		Mime: n.Entry.Content.MimeType,
		Size: n.Entry.Content.SizeInBytes,
	}
}
