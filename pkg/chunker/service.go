package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// Service splits canonical text into sentence-aligned passages. A
// sentence longer than the chunk size becomes its own oversized chunk
// rather than being cut mid-sentence.
type Service struct{}

func New() *Service {
	return &Service{}
}

// Split produces ordered chunks of at most size runes with the last
// overlap runes of each chunk carried into the next.
func (s *Service) Split(text string, size, overlap int) ([]string, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", domain.ErrInvalidInput)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, size)", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	var sentences []string
	for _, para := range splitIntoParagraphs(text) {
		sentences = append(sentences, splitIntoSentences(para)...)
	}
	return combineChunks(sentences, size, overlap), nil
}

func splitIntoParagraphs(text string) []string {
	var result []string
	for _, para := range strings.Split(text, "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			result = append(result, para)
		}
	}
	return result
}

func splitIntoSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if !isSentenceEnd(r) {
			continue
		}

		// A terminator ends the sentence when it is the last rune,
		// when whitespace or an uppercase letter follows, or in CJK
		// text where no space separates sentences.
		isEnd := false
		if i+1 >= len(runes) {
			isEnd = true
		} else {
			next := runes[i+1]
			if unicode.IsSpace(next) || unicode.IsUpper(next) || isSentenceEnd(next) {
				isEnd = true
			} else if isCJK(r) || isCJK(next) {
				isEnd = !unicode.IsPunct(next) || isSentenceEnd(next)
			}
		}

		if isEnd {
			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
			for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				i++
			}
		}
	}

	if sentence := strings.TrimSpace(current.String()); sentence != "" {
		sentences = append(sentences, sentence)
	}
	return sentences
}

func combineChunks(sentences []string, size, overlap int) []string {
	if len(sentences) == 0 {
		return []string{}
	}

	var chunks []string
	var current strings.Builder
	var currentLen int

	for _, sentence := range sentences {
		sentenceLen := len([]rune(sentence))

		spaceNeeded := 0
		if current.Len() > 0 {
			spaceNeeded = 1
		}

		if currentLen+spaceNeeded+sentenceLen > size && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))

			overlapText := overlapTail(current.String(), overlap)
			current.Reset()
			currentLen = 0
			if overlapText != "" {
				current.WriteString(overlapText)
				current.WriteString(" ")
				currentLen = len([]rune(overlapText)) + 1
			}
		} else if current.Len() > 0 {
			current.WriteString(" ")
			currentLen++
		}

		current.WriteString(sentence)
		currentLen += sentenceLen
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// overlapTail returns the trailing overlap runes of text, trimmed to a
// word boundary so the carried context reads cleanly.
func overlapTail(text string, overlap int) string {
	if overlap <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= overlap {
		return text
	}
	tail := string(runes[len(runes)-overlap:])
	words := strings.Fields(tail)
	if len(words) > 1 {
		return strings.Join(words[1:], " ")
	}
	return tail
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '。' || r == '！' || r == '？'
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF)
}
