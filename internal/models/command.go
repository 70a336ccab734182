// internal/models/command.go
package models

import (
	"strings"
	"time"
)

// Source tags identify the channel a command arrived on.
const (
	SourceAPI       = "api"
	SourceMail      = "mail"
	SourceTwitter   = "twitter"
	SourceSimulated = "simulated"
)

// Command carries the fields shared by every command-born entity:
// ownership, location, channel, lifecycle state, criteria and audit
// timestamps. Demand and Proposal embed it.
type Command struct {
	Key           string    `json:"key"`
	OwnerKey      string    `json:"ownerKey"`
	LocationKey   string    `json:"locationKey"`
	Source        string    `json:"source"`
	State         State     `json:"state"`
	RawCommandKey string    `json:"rawCommandKey"`
	Criteria      []string  `json:"criteria"`
	CancelerKey   string    `json:"cancelerKey,omitempty"`
	Locale        string    `json:"locale"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AddCriterion appends a keyword unless an equal one (case-insensitively)
// is already present. Insertion order is preserved.
func (c *Command) AddCriterion(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	for _, existing := range c.Criteria {
		if strings.EqualFold(existing, tag) {
			return
		}
	}
	c.Criteria = append(c.Criteria, tag)
}

// RemoveCriterion drops the keyword matching case-insensitively, if any.
func (c *Command) RemoveCriterion(tag string) {
	for i, existing := range c.Criteria {
		if strings.EqualFold(existing, tag) {
			c.Criteria = append(c.Criteria[:i], c.Criteria[i+1:]...)
			return
		}
	}
}

// ResetCriteria replaces the whole set, deduplicating case-insensitively.
func (c *Command) ResetCriteria(tags []string) {
	c.Criteria = nil
	for _, tag := range tags {
		c.AddCriterion(tag)
	}
}

// Touch bumps the modification timestamp.
func (c *Command) Touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}
