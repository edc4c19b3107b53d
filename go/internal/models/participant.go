package models

import "time"

// Participant maps a durable player to the connection currently serving it.
type Participant struct {
	PlayerID     string     `json:"player_id"`
	ConnectionID string     `json:"connection_id"`
	Seeking      bool       `json:"seeking"`
	SeekingSince *time.Time `json:"seeking_since,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
