package memorybank

import (
	"sort"
	"sync"

	"github.com/compliance-sentinel/sentinel/pipeline"
)

type entry struct {
	id       string
	vector   []float64
	text     string
	metadata map[string]string
}

// index is a brute-force in-memory vector index. Add appends; Search scans
// every entry and ranks by cosine similarity. The corpora here (policy
// templates, stored violations) stay small enough that a scan beats the
// operational cost of an external vector database.
type index struct {
	mu      sync.RWMutex
	entries []entry
}

func newIndex() *index {
	return &index{}
}

func (ix *index) add(id, text string, metadata map[string]string) {
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries = append(ix.entries, entry{
		id:       id,
		vector:   Embed(text),
		text:     text,
		metadata: meta,
	})
}

func (ix *index) search(query string, topK int) []pipeline.Match {
	if topK <= 0 {
		return nil
	}

	queryVec := Embed(query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]pipeline.Match, 0, len(ix.entries))
	for _, e := range ix.entries {
		matches = append(matches, pipeline.Match{
			Text:       e.text,
			Similarity: cosine(queryVec, e.vector),
			Metadata:   e.metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func (ix *index) len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}
