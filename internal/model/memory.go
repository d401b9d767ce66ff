// Package model defines the core memory data types.
package model

import "time"

// Memory represents a stored memory record, the unit of recall.
type Memory struct {
	ID                   string     `json:"id"`
	Type                 string     `json:"type"`
	Content              string     `json:"content"`
	Salience             float64    `json:"salience"`
	State                string     `json:"state"`
	ActivationCount      int        `json:"activation_count"`
	LastActivatedAt      *time.Time `json:"last_activated_at,omitempty"`
	EmotionScore         float64    `json:"emotion_score"`
	NarrativeScore       float64    `json:"narrative_score"`
	CredibilityScore     float64    `json:"credibility_score"`
	ReconsolidationCount int        `json:"reconsolidation_count"`
	OriginRole           string     `json:"origin_role"`
	EvidenceLevel        string     `json:"evidence_level,omitempty"`
	Excluded             bool       `json:"excluded,omitempty"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Embedding is the stored vector for one memory record.
type Embedding struct {
	MemoryID    string    `json:"memory_id"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Dims        int       `json:"dims"`
	Vector      []float32 `json:"vector"`
	ContentHash string    `json:"content_hash"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidTypes are the allowed memory types.
var ValidTypes = map[string]bool{
	"episodic":   true,
	"semantic":   true,
	"relational": true,
	"procedural": true,
}

// ValidStates are the allowed lifecycle states.
var ValidStates = map[string]bool{
	"hot":     true,
	"warm":    true,
	"cold":    true,
	"archive": true,
	"scar":    true,
}

// ValidOrigins are the allowed origin roles.
var ValidOrigins = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
}
