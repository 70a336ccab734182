// internal/models/rawcommand.go
package models

import "time"

// RawCommand keeps the original inbound text of a command, so replies can
// be routed back over the channel it arrived on.
type RawCommand struct {
	Key       string    `json:"key"`
	Command   string    `json:"command"`
	Source    string    `json:"source"`
	Emitter   string    `json:"emitter"` // channel-specific reply address
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"createdAt"`
}
