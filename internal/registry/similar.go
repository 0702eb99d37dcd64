package registry

import (
	"fmt"
	"sort"
)

const (
	// DefaultSimilarLimit caps similarity results when the caller passes
	// no limit of its own.
	DefaultSimilarLimit = 5

	// DefaultMinSimilarity is the match threshold most callers want.
	// FindSimilar does not apply it on its own; an explicit zero means
	// "everything".
	DefaultMinSimilarity = 0.7
)

// Match pairs an entity with its similarity to the query entity.
type Match struct {
	Entity     *Entity `json:"entity"`
	Similarity float64 `json:"similarity"`
}

// FindSimilar returns up to k entities whose embeddings score at least
// minSim cosine similarity against the named entity, most similar first.
// The query entity itself is skipped, as are entities without embeddings.
// A non-nil filter restricts the candidate set.
func (r *Registry) FindSimilar(id string, k int, minSim float64, filter func(*Entity) bool) ([]Match, error) {
	e, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if len(e.Embedding) == 0 {
		return nil, fmt.Errorf("entity %s has no embedding", id)
	}
	if k <= 0 {
		k = DefaultSimilarLimit
	}

	var matches []Match
	for _, cand := range r.All() {
		if cand.ID == id || len(cand.Embedding) == 0 {
			continue
		}
		if filter != nil && !filter(cand) {
			continue
		}
		sim := CosineSimilarity(e.Embedding, cand.Embedding)
		if sim >= minSim {
			matches = append(matches, Match{Entity: cand, Similarity: sim})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Entity.ID < matches[j].Entity.ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
