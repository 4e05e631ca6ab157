package rag

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// CompetencyDefinition is one labeled reference: the embedded payload is name
// plus description so the reference vector carries both.
type CompetencyDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type competencyFile struct {
	Competencies []CompetencyDefinition `yaml:"competencies"`
}

// LoadCompetencyDefinitions reads the competency reference set from a YAML
// file.
func LoadCompetencyDefinitions(path string) ([]CompetencyDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read competency file: %w", err)
	}
	var f competencyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode competency file: %w", err)
	}
	out := make([]CompetencyDefinition, 0, len(f.Competencies))
	for _, def := range f.Competencies {
		if strings.TrimSpace(def.Name) == "" {
			continue
		}
		out = append(out, def)
	}
	return out, nil
}

// CompetencyTagger labels embedding records by cosine similarity against a
// small reference set, so retrieval can later filter by skill area.
type CompetencyTagger struct {
	log       *logger.Logger
	embedder  *Embedder
	defs      []CompetencyDefinition
	vectors   [][]float32
	threshold float64
	maxTags   int
}

func NewCompetencyTagger(log *logger.Logger, embedder *Embedder, defs []CompetencyDefinition, threshold float64, maxTags int) *CompetencyTagger {
	if threshold <= 0 {
		threshold = 0.25
	}
	if maxTags <= 0 {
		maxTags = 3
	}
	return &CompetencyTagger{
		log:       log.With("service", "CompetencyTagger"),
		embedder:  embedder,
		defs:      defs,
		threshold: threshold,
		maxTags:   maxTags,
	}
}

// Prime embeds the reference definitions once. Must be called before Tag;
// calling Tag unprimed returns no tags.
func (t *CompetencyTagger) Prime(ctx context.Context) error {
	if len(t.defs) == 0 {
		return nil
	}
	payloads := make([]string, len(t.defs))
	for i, def := range t.defs {
		payloads[i] = def.Name + ": " + def.Description
	}
	vecs, err := t.embedder.Embed(ctx, payloads, EmbedKindDocument)
	if err != nil {
		return fmt.Errorf("embed competency definitions: %w", err)
	}
	t.vectors = vecs
	t.log.Info("Competency reference vectors primed", "count", len(vecs))
	return nil
}

// Primed reports whether the reference vectors have been embedded.
func (t *CompetencyTagger) Primed() bool {
	return len(t.defs) == 0 || len(t.vectors) > 0
}

type scoredTag struct {
	name  string
	score float64
}

// Tag returns up to maxTags competency names whose reference vectors score at
// or above the threshold against vec, best first. When nothing clears the
// threshold, the single best-scoring tag is returned so every record carries
// at least one label.
func (t *CompetencyTagger) Tag(vec []float32) []string {
	if len(vec) == 0 || len(t.vectors) == 0 {
		return nil
	}

	scored := make([]scoredTag, 0, len(t.defs))
	for i, def := range t.defs {
		if i >= len(t.vectors) || t.vectors[i] == nil {
			continue
		}
		scored = append(scored, scoredTag{name: def.Name, score: cosine(vec, t.vectors[i])})
	}
	if len(scored) == 0 {
		return nil
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	var tags []string
	for _, s := range scored {
		if s.score < t.threshold || len(tags) >= t.maxTags {
			break
		}
		tags = append(tags, s.name)
	}
	if len(tags) == 0 {
		tags = []string{scored[0].name}
	}
	return tags
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
