package source

import (
	"context"
	"fmt"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// Text serves caller-supplied raw content, used by the ingest-text
// path and by uploads that arrive with the request body.
type Text struct {
	items map[string][]byte
	order []domain.DocumentRef
}

// NewText builds a source over named text items. Names should carry an
// extension so the converter can classify them; bare names are treated
// as plain text. The caller's name is kept as the source attribution,
// the extension only routes conversion.
func NewText(items map[string]string) *Text {
	t := &Text{items: make(map[string][]byte, len(items))}
	for name, content := range items {
		ref := domain.DocumentRef{
			ID:   name,
			Name: ensureExt(name),
			Path: name,
			Size: int64(len(content)),
		}
		t.items[ref.ID] = []byte(content)
		t.order = append(t.order, ref)
	}
	return t
}

func ensureExt(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name
		}
		if name[i] == '/' || name[i] == '\\' {
			break
		}
	}
	return name + ".txt"
}

func (t *Text) Enumerate(ctx context.Context) ([]domain.DocumentRef, error) {
	refs := make([]domain.DocumentRef, len(t.order))
	copy(refs, t.order)
	return refs, nil
}

func (t *Text) Fetch(ctx context.Context, ref domain.DocumentRef) ([]byte, error) {
	data, ok := t.items[ref.ID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown item %s", domain.ErrInvalidInput, ref.ID)
	}
	return data, nil
}
