// internal/models/store.go
package models

import "time"

// Store is a retail outlet where sale associates work.
type Store struct {
	Key          string    `json:"key"`
	LocationKey  string    `json:"locationKey"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	PhoneNumber  string    `json:"phoneNumber"`
	Email        string    `json:"email"`
	HasEmployees bool      `json:"hasEmployees"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
