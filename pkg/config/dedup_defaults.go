package config

// Default phrase lists and patterns for result deduplication. Deployments
// can override any of these through the dedup.* config keys.

// DefaultPreamblePrefixes are generated-summary openers stripped from the
// front of a passage before comparing it against others.
var DefaultPreamblePrefixes = []string{
	"here is a summary",
	"here's a summary",
	"here is a concise summary",
	"here are some facts extracted from the provided text",
	"based on the provided information",
	"based on the provided text",
	"based on the given context",
	"the provided text describes",
	"the text describes",
	"according to the provided information",
	"summary:",
}

// DefaultClosingPhrases are generated-summary closers stripped from the
// tail of a passage.
var DefaultClosingPhrases = []string{
	"in summary",
	"in conclusion",
	"overall,",
	"to summarize",
	"let me know if you need more details",
}

// DefaultDatePatterns recover year and date mentions that phrase
// stripping may have cut off, so near-duplicate passages that differ
// only in a trailing date are still compared fairly.
var DefaultDatePatterns = []string{
	`(?i)\bsince\s+\d{3,5}\b`,
	`(?i)\bin\s+(?:the\s+year\s+)?\d{3,5}\b`,
	`\b\d{4}-\d{2}-\d{2}\b`,
}
