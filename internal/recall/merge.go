package recall

import (
	"github.com/personacore/persona-memory/internal/model"
)

// Candidate is one merged pre-score candidate, tagged with its originating
// channel(s).
type Candidate struct {
	Memory      model.Memory `json:"memory"`
	Source      string       `json:"source"`
	VectorScore float64      `json:"vector_score"`
	HasVector   bool         `json:"has_vector"`
}

// VectorHit pairs a memory with its rescaled vector similarity.
type VectorHit struct {
	Memory model.Memory
	Score  float64
}

// mergeCandidates unions the three channels by memory identity. A candidate
// present in two or more channels is tagged hybrid; on duplicates the row
// copy with the higher stored salience wins and the best vector score seen
// is kept. Output order is deterministic: salience rows first, then new
// lexical rows, then new vector rows.
func mergeCandidates(salience, lexical []model.Memory, vector []VectorHit) []Candidate {
	index := map[string]int{}
	var out []Candidate

	absorb := func(m model.Memory, source string, vecScore float64, hasVector bool) {
		i, ok := index[m.ID]
		if !ok {
			index[m.ID] = len(out)
			out = append(out, Candidate{Memory: m, Source: source, VectorScore: vecScore, HasVector: hasVector})
			return
		}
		c := &out[i]
		if c.Source != source {
			c.Source = model.SourceHybrid
		}
		if m.Salience > c.Memory.Salience {
			c.Memory = m
		}
		if vecScore > c.VectorScore {
			c.VectorScore = vecScore
		}
		c.HasVector = c.HasVector || hasVector
	}

	for _, m := range salience {
		absorb(m, model.SourceSalience, 0, false)
	}
	for _, m := range lexical {
		absorb(m, model.SourceFTS, 0, false)
	}
	for _, h := range vector {
		absorb(h.Memory, model.SourceVector, h.Score, true)
	}
	return out
}
