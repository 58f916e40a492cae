package engine

import (
	"regexp"
	"strings"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/log"
)

const (
	fingerprintLen = 300

	// Similarity thresholds. Graph passages are synthesized, so they
	// collapse against prose at a looser bound.
	sameSourceThreshold = 0.7
	graphProseThreshold = 0.6
)

var entityChainPattern = regexp.MustCompile(`^\s*(.+?)\s*->\s*([A-Z_]+)\s*->\s*([^:]+)`)

// Deduper collapses near-identical passages left over after fusion.
// Model-generated framing is stripped before comparison so two chunks
// that differ only in boilerplate still match.
type Deduper struct {
	preambles []string
	closings  []string
	dates     []*regexp.Regexp
}

func NewDeduper(cfg config.DedupConfig) *Deduper {
	d := &Deduper{
		preambles: lowerAll(cfg.PreamblePrefixes),
		closings:  lowerAll(cfg.ClosingPhrases),
	}
	for _, p := range cfg.DatePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Warnf("skipping invalid date pattern %q: %v", p, err)
			continue
		}
		d.dates = append(d.dates, re)
	}
	return d
}

// Deduplicate keeps the first occurrence of each passage in rank order.
// When a duplicate carries a date fact the kept passage lacks, the
// sentence holding it is appended so the fact survives the drop.
func (d *Deduper) Deduplicate(chunks []domain.Chunk) []domain.Chunk {
	kept := make([]domain.Chunk, 0, len(chunks))
	normalized := make([]string, 0, len(chunks))

	for _, candidate := range chunks {
		norm := d.normalize(candidate.Content)
		dupIdx := -1
		for i := range kept {
			if d.duplicate(norm, normalized[i], candidate, kept[i]) {
				dupIdx = i
				break
			}
		}
		if dupIdx < 0 {
			kept = append(kept, candidate)
			normalized = append(normalized, norm)
			continue
		}
		if recovered := d.recoverDates(candidate.Content, kept[dupIdx].Content); recovered != "" {
			kept[dupIdx].Content = strings.TrimSpace(kept[dupIdx].Content) + " " + recovered
			normalized[dupIdx] = d.normalize(kept[dupIdx].Content)
		}
	}
	return kept
}

func (d *Deduper) duplicate(a, b string, chunkA, chunkB domain.Chunk) bool {
	if a == "" || b == "" {
		return a == b
	}
	if fingerprint(a) == fingerprint(b) {
		return true
	}

	threshold := graphProseThreshold
	if !isGraphChunk(chunkA) && !isGraphChunk(chunkB) {
		if chunkA.MetaString("file_name") != chunkB.MetaString("file_name") {
			return false
		}
		threshold = sameSourceThreshold
	}
	return jaccard(wordSet(a), wordSet(b)) >= threshold
}

// normalize strips framing and reduces graph chains to their factual
// tail so "X -> MENTIONS -> Y: text" compares by text.
func (d *Deduper) normalize(content string) string {
	text := strings.TrimSpace(content)

	if m := entityChainPattern.FindStringIndex(text); m != nil {
		if idx := strings.Index(text, ":"); idx >= 0 && idx < len(text)-1 {
			text = strings.TrimSpace(text[idx+1:])
		}
	}

	lower := strings.ToLower(text)
	for _, p := range d.preambles {
		if strings.HasPrefix(lower, p) {
			if idx := strings.IndexAny(text, ".:\n"); idx >= 0 && idx < len(text)-1 {
				text = strings.TrimSpace(text[idx+1:])
				lower = strings.ToLower(text)
			}
			break
		}
	}

	for _, c := range d.closings {
		if idx := strings.LastIndex(lower, c); idx > 0 {
			tail := text[idx:]
			// Only strip when the phrase starts the final sentence.
			if !strings.ContainsAny(tail, ".!?") || strings.Count(tail, ".") <= 1 {
				text = strings.TrimSpace(text[:idx])
				lower = strings.ToLower(text)
			}
			break
		}
	}

	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// recoverDates returns the sentences of dropped that carry a date fact
// absent from kept.
func (d *Deduper) recoverDates(dropped, kept string) string {
	if len(d.dates) == 0 {
		return ""
	}
	var recovered []string
	for _, sentence := range splitSentences(dropped) {
		for _, re := range d.dates {
			match := re.FindString(sentence)
			if match == "" {
				continue
			}
			if strings.Contains(strings.ToLower(kept), strings.ToLower(match)) {
				continue
			}
			recovered = append(recovered, strings.TrimSpace(sentence))
			break
		}
	}
	return strings.Join(recovered, " ")
}

func isGraphChunk(c domain.Chunk) bool {
	return c.MetaString("source") == "knowledge_graph" ||
		entityChainPattern.MatchString(c.Content)
}

func fingerprint(normalized string) string {
	if len(normalized) > fingerprintLen {
		return normalized[:fingerprintLen]
	}
	return normalized
}

func wordSet(normalized string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(normalized) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) >= 2 {
			set[w] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
