package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"

	"github.com/aretw0/turnstile/pkg/domain"
)

// Instructions holds the instruction text for both modes.
// A field is empty when the repository has no document for that mode.
type Instructions struct {
	Gathering  string
	Generating string
}

// Loader reads mode instructions from a Loam document repository.
//
// Documents are matched by their `mode` frontmatter key or, failing that,
// by their ID with the extension stripped (gathering.md, generating.md).
type Loader struct {
	Repo *loam.TypedRepository[InstructionMetadata]
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[InstructionMetadata]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a read-only repository at dir and wraps it.
func Open(dir string) (*Loader, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[InstructionMetadata](repo)), nil
}

// Load collects the instruction documents.
func (l *Loader) Load(ctx context.Context) (Instructions, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return Instructions{}, fmt.Errorf("loam list failed: %w", err)
	}

	var out Instructions
	seen := make(map[domain.Mode]string)

	// List only carries ids; content and frontmatter come from Get.
	for _, entry := range docs {
		id := trimExtension(entry.ID)
		doc, err := l.Repo.Get(ctx, id)
		if err != nil {
			return Instructions{}, fmt.Errorf("loam get failed for %s: %w", id, err)
		}

		mode, ok := modeOf(entry.ID, doc.Data)
		if !ok {
			continue
		}
		if existing, dup := seen[mode]; dup {
			return Instructions{}, fmt.Errorf("collision detected: %s instructions are defined in both '%s' and '%s'", mode, existing, entry.ID)
		}
		seen[mode] = entry.ID

		text := strings.TrimSpace(doc.Content)
		switch mode {
		case domain.ModeGathering:
			out.Gathering = text
		case domain.ModeGenerating:
			out.Generating = text
		}
	}
	return out, nil
}

func modeOf(docID string, meta InstructionMetadata) (domain.Mode, bool) {
	name := meta.Mode
	if name == "" {
		name = meta.ID
	}
	if name == "" {
		name = docID
	}
	name = strings.ToLower(filepath.Base(trimExtension(name)))

	switch domain.Mode(name) {
	case domain.ModeGathering:
		return domain.ModeGathering, true
	case domain.ModeGenerating:
		return domain.ModeGenerating, true
	}
	return "", false
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
