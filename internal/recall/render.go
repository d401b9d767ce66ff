package recall

import "github.com/personacore/persona-memory/internal/model"

// renderBlock shapes a selected memory for the response generator. The
// rendered text is the raw content so the character budget stays exact.
func renderBlock(m model.Memory, source string) model.MemoryBlock {
	return model.MemoryBlock{
		ID:               m.ID,
		Source:           source,
		Content:          m.Content,
		UncertaintyLevel: uncertaintyLevel(m),
	}
}

// uncertaintyLevel maps credibility and evidence onto a coarse label the
// downstream generator can hedge on.
func uncertaintyLevel(m model.Memory) string {
	score := m.CredibilityScore
	switch m.EvidenceLevel {
	case "verified", "strong":
		score += 0.15
	case "weak", "hearsay":
		score -= 0.15
	}
	switch {
	case score >= 0.75:
		return "low"
	case score >= 0.45:
		return "medium"
	default:
		return "high"
	}
}
