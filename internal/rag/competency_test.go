package rag

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

func newTestTagger(t *testing.T, threshold float64, maxTags int) *CompetencyTagger {
	t.Helper()
	defs := []CompetencyDefinition{
		{Name: "backend", Description: "servers and APIs"},
		{Name: "data", Description: "pipelines and analytics"},
		{Name: "frontend", Description: "interfaces"},
	}
	// Reference vectors are axis-aligned so the similarity of a probe vector
	// is directly readable from its components.
	byName := map[string][]float32{
		"backend: servers and APIs":       {1, 0, 0},
		"data: pipelines and analytics":   {0, 1, 0},
		"frontend: interfaces":            {0, 0, 1},
	}
	provider := &fakeProvider{vecFor: func(text string) []float32 { return byName[text] }}
	embedder := NewEmbedder(logger.Nop(), provider, 96, 1)
	tagger := NewCompetencyTagger(logger.Nop(), embedder, defs, threshold, maxTags)
	if err := tagger.Prime(context.Background()); err != nil {
		t.Fatalf("Prime: %v", err)
	}
	return tagger
}

func TestTagAboveThreshold(t *testing.T) {
	tagger := newTestTagger(t, 0.25, 3)
	tags := tagger.Tag([]float32{0.9, 0.4, 0.01})
	if len(tags) != 2 {
		t.Fatalf("tags: want=2 got=%v", tags)
	}
	if tags[0] != "backend" || tags[1] != "data" {
		t.Fatalf("tags order: got=%v", tags)
	}
}

func TestTagCapsAtMaxTags(t *testing.T) {
	tagger := newTestTagger(t, 0.1, 2)
	tags := tagger.Tag([]float32{0.5, 0.5, 0.5})
	if len(tags) != 2 {
		t.Fatalf("tags: want=2 got=%v", tags)
	}
}

func TestTagFallsBackToBest(t *testing.T) {
	tagger := newTestTagger(t, 0.99, 3)
	tags := tagger.Tag([]float32{0.2, 0.9, 0.1})
	if len(tags) != 1 || tags[0] != "data" {
		t.Fatalf("fallback tag: want=[data] got=%v", tags)
	}
}

func TestTagUnprimedReturnsNothing(t *testing.T) {
	provider := &fakeProvider{}
	embedder := NewEmbedder(logger.Nop(), provider, 96, 1)
	defs := []CompetencyDefinition{{Name: "backend"}}
	tagger := NewCompetencyTagger(logger.Nop(), embedder, defs, 0.25, 3)
	if tagger.Primed() {
		t.Fatalf("Primed: want=false before Prime")
	}
	if tags := tagger.Tag([]float32{1}); tags != nil {
		t.Fatalf("tags: want=nil got=%v", tags)
	}
}

func TestLoadCompetencyDefinitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "competencies.yaml")
	content := `competencies:
  - name: backend
    description: servers and APIs
  - name: ""
    description: skipped for missing name
  - name: data
    description: pipelines
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	defs, err := LoadCompetencyDefinitions(path)
	if err != nil {
		t.Fatalf("LoadCompetencyDefinitions: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("definitions: want=2 got=%d", len(defs))
	}
	if defs[0].Name != "backend" || defs[1].Name != "data" {
		t.Fatalf("definitions: got %+v", defs)
	}
}

func TestLoadCompetencyDefinitionsMissingFile(t *testing.T) {
	if _, err := LoadCompetencyDefinitions("/nonexistent/competencies.yaml"); err == nil {
		t.Fatalf("LoadCompetencyDefinitions: expected error for missing file")
	}
}
