package models

import "time"

// TrainingItem is the externally visible projection of an EmbeddingRecord
// used by the list and search APIs.
type TrainingItem struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Question  string         `json:"question,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TrainingItemFromRecord projects a stored record into its API view.
func TrainingItemFromRecord(r *EmbeddingRecord) TrainingItem {
	item := TrainingItem{
		ID:        r.ID,
		Content:   r.Document,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
	if t, ok := r.Metadata[MetaContentType].(string); ok {
		item.Type = t
	}
	if q, ok := r.Metadata[MetaQuestion].(string); ok {
		item.Question = q
	}
	return item
}

// RemoveOutcome reports the per-item result of a batch removal. Removal of
// one id never aborts processing of the others.
type RemoveOutcome struct {
	Removed []string       `json:"removed"`
	Failed  []RemoveFailed `json:"failed"`
}

// RemoveFailed names one id that could not be removed and why.
type RemoveFailed struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}
