package extractor

import (
	"fmt"
	"strings"
	"time"

	"github.com/fintorai/agentforge/internal/domain"
	"go.uber.org/zap"
)

// Source says where the extracted artifacts came from. Downstream publishing
// treats fallback-extracted output differently from real write events.
type Source int

const (
	// SourceNone means the attempt produced no usable artifacts.
	SourceNone Source = iota
	// SourceWrites means artifacts came verbatim from write events.
	SourceWrites
	// SourceFallback means artifacts were recovered from fenced code blocks
	// in the assistant's narrative output.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceWrites:
		return "writes"
	case SourceFallback:
		return "fallback"
	default:
		return "none"
	}
}

var fallbackExtensions = map[string]string{
	"python":     "py",
	"go":         "go",
	"typescript": "ts",
	"javascript": "js",
	"rust":       "rs",
}

// Extractor turns a generation attempt's captured output into the artifact
// list to publish.
type Extractor struct {
	language string
	log      *zap.Logger

	// now is overridable for deterministic fallback filenames in tests.
	now func() time.Time
}

func New(language string, log *zap.Logger) *Extractor {
	return &Extractor{
		language: language,
		log:      log,
		now:      time.Now,
	}
}

// Extract prefers explicit write events: when any exist they are returned
// verbatim, paths and contents untouched. Only when the attempt produced zero
// write events does extraction fall back to mining fenced code blocks, first
// from the assistant's narrative fragments and then from raw stdout. The
// fallback synthesizes a single timestamped artifact.
func (e *Extractor) Extract(writes []domain.WrittenArtifact, texts []string, stdout string) ([]domain.WrittenArtifact, Source) {
	if len(writes) > 0 {
		e.log.Debug("artifacts from write events", zap.Int("count", len(writes)))
		return writes, SourceWrites
	}

	narrative := strings.Join(texts, "\n")
	for _, candidate := range []string{narrative, stdout} {
		if candidate == "" {
			continue
		}
		block, ok := SelectBlock(ParseFences(candidate), e.language)
		if !ok {
			continue
		}
		artifact := domain.WrittenArtifact{
			Path:    e.fallbackPath(),
			Content: block.Body,
		}
		e.log.Info("artifact recovered from fenced block",
			zap.String("path", artifact.Path),
			zap.String("tag", block.Tag))
		return []domain.WrittenArtifact{artifact}, SourceFallback
	}

	e.log.Warn("no artifacts extracted")
	return nil, SourceNone
}

func (e *Extractor) fallbackPath() string {
	ext, ok := fallbackExtensions[strings.ToLower(e.language)]
	if !ok {
		ext = "txt"
	}
	return fmt.Sprintf("generated_graph_%s.%s", e.now().Format("20060102_150405"), ext)
}
