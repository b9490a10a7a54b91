package kafka

import "time"

// Event is the envelope for every message on the platform's topics.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // detection-run-completed, dataset-refresh
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
