// internal/models/saleassociate.go
package models

import (
	"strings"
	"time"
)

// SaleAssociate is a store employee able to respond to demands. Criteria
// records what the associate can fulfill; an empty set means "anything".
type SaleAssociate struct {
	Key          string    `json:"key"`
	ConsumerKey  string    `json:"consumerKey"`
	StoreKey     string    `json:"storeKey"`
	LocationKey  string    `json:"locationKey"`
	Criteria     []string  `json:"criteria"`
	IsStoreAdmin bool      `json:"isStoreAdmin"`
	Score        int64     `json:"score"`
	Locale       string    `json:"locale"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AddCriterion appends a supply keyword, case-insensitively deduplicated.
func (a *SaleAssociate) AddCriterion(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	for _, existing := range a.Criteria {
		if strings.EqualFold(existing, tag) {
			return
		}
	}
	a.Criteria = append(a.Criteria, tag)
}

// RemoveCriterion drops the keyword matching case-insensitively, if any.
func (a *SaleAssociate) RemoveCriterion(tag string) {
	for i, existing := range a.Criteria {
		if strings.EqualFold(existing, tag) {
			a.Criteria = append(a.Criteria[:i], a.Criteria[i+1:]...)
			return
		}
	}
}
