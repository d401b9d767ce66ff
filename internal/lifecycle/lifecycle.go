// Package lifecycle recomputes derived memory fields after activation:
// salience rescoring and lifecycle-state classification.
package lifecycle

import (
	"math"
	"time"

	"github.com/personacore/persona-memory/internal/model"
)

// Salience floor: reinforced memories are never rescored to zero.
const salienceFloor = 0.05

// Rescore computes the post-activation salience for a memory. Activation
// pulls salience toward 1 with diminishing returns as the activation count
// grows, and emotion/narrative weight anchors the baseline.
func Rescore(m model.Memory, now time.Time) float64 {
	gain := 0.1 / (1 + math.Log1p(float64(m.ActivationCount))/4)
	s := m.Salience + (1-m.Salience)*gain

	anchor := 0.3*m.EmotionScore + 0.2*m.NarrativeScore
	if anchor > s {
		s = s + (anchor-s)*0.5
	}

	if s < salienceFloor {
		s = salienceFloor
	}
	if s > 1 {
		s = 1
	}
	return s
}

// Classify maps a memory's rescored salience and age to a lifecycle state.
// Scar memories are permanent and never reclassified.
func Classify(m model.Memory, salience float64, now time.Time) string {
	if m.State == "scar" {
		return "scar"
	}

	ageDays := now.Sub(m.CreatedAt).Hours() / 24
	last := m.CreatedAt
	if m.LastActivatedAt != nil {
		last = *m.LastActivatedAt
	}
	idleDays := now.Sub(last).Hours() / 24

	switch {
	case salience >= 0.75 && idleDays < 7:
		return "hot"
	case salience >= 0.45:
		return "warm"
	case salience >= 0.2 || ageDays < 30:
		return "cold"
	default:
		return "archive"
	}
}
