package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/log"
)

const keywordCount = 5

// Enricher attaches keywords, a rolling section summary and an
// embedding to each chunk. LLM-backed steps degrade to local fallbacks
// when the generator misbehaves, so enrichment never fails a document.
type Enricher struct {
	gen       domain.Generator
	embedder  domain.Embedder
	keywords  bool
	summaries bool
}

func New(gen domain.Generator, embedder domain.Embedder, keywords, summaries bool) *Enricher {
	return &Enricher{
		gen:       gen,
		embedder:  embedder,
		keywords:  keywords,
		summaries: summaries,
	}
}

// Enrich turns split texts into fully annotated chunks for one
// document. Chunk IDs are deterministic so re-ingesting a document
// overwrites its old entries.
func (e *Enricher) Enrich(ctx context.Context, doc domain.Document, texts []string) ([]domain.Chunk, error) {
	chunks := make([]domain.Chunk, 0, len(texts))

	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk := domain.Chunk{
			ID:         chunkID(doc.ID, i),
			DocumentID: doc.ID,
			Position:   i,
			Content:    text,
			Metadata: map[string]interface{}{
				"source":            doc.Source,
				"file_name":         doc.FileName,
				"file_type":         doc.FileType,
				"conversion_method": doc.ConversionMethod,
			},
		}

		if e.keywords {
			chunk.Metadata["keywords"] = e.extractKeywords(ctx, text)
		}
		if e.summaries {
			chunk.Metadata["section_summary"] = e.sectionSummary(ctx, texts, i)
		}

		if e.embedder != nil {
			vec, err := e.embedder.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("%w: embedding chunk %d of %s: %v", domain.ErrModelIO, i, doc.FileName, err)
			}
			chunk.Vector = vec
		}

		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

func chunkID(docID string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", docID, position))).String()
}

// extractKeywords asks the LLM for the top terms and falls back to a
// frequency count when the model is unavailable or returns noise.
func (e *Enricher) extractKeywords(ctx context.Context, text string) []string {
	if e.gen != nil {
		prompt := fmt.Sprintf(
			"Extract the %d most important keywords from the following text. "+
				"Reply with the keywords only, comma-separated, no numbering.\n\nText:\n%s",
			keywordCount, text)
		resp, err := e.gen.Generate(ctx, prompt, &domain.GenerationOptions{MaxTokens: 64})
		if err == nil {
			if kws := parseKeywordList(resp); len(kws) > 0 {
				return kws
			}
		} else {
			log.Debugf("keyword extraction fell back to frequency count: %v", err)
		}
	}
	return FrequencyKeywords(text, keywordCount)
}

func parseKeywordList(resp string) []string {
	resp = strings.TrimSpace(resp)
	if resp == "" || strings.Contains(resp, "\n\n") {
		return nil
	}
	var kws []string
	for _, part := range strings.Split(resp, ",") {
		part = strings.TrimSpace(strings.Trim(part, ".\"'"))
		if part != "" && len(strings.Fields(part)) <= 3 {
			kws = append(kws, strings.ToLower(part))
		}
		if len(kws) == keywordCount {
			break
		}
	}
	return kws
}

// sectionSummary summarizes the chunk in the context of its neighbours,
// so retrieval sees a little of the surrounding narrative.
func (e *Enricher) sectionSummary(ctx context.Context, texts []string, i int) string {
	window := texts[i]
	if i > 0 {
		window = texts[i-1] + "\n" + window
	}
	if i+1 < len(texts) {
		window = window + "\n" + texts[i+1]
	}

	if e.gen != nil {
		prompt := "Summarize the following passage in one or two sentences:\n\n" + window
		resp, err := e.gen.Generate(ctx, prompt, &domain.GenerationOptions{MaxTokens: 128})
		if err == nil && strings.TrimSpace(resp) != "" {
			return strings.TrimSpace(resp)
		}
		if err != nil {
			log.Debugf("section summary fell back to lead sentence: %v", err)
		}
	}
	return leadSentence(texts[i])
}

func leadSentence(text string) string {
	text = strings.TrimSpace(text)
	for _, end := range []string{". ", "! ", "? "} {
		if idx := strings.Index(text, end); idx > 0 {
			return text[:idx+1]
		}
	}
	if len(text) > 200 {
		return text[:200]
	}
	return text
}
