package models

import (
	"fmt"
	"time"
)

// Visibility controls whether an item is discoverable without its secret key.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// ParseVisibility parses a form value. An empty value defaults to PRIVATE,
// matching the create form's behavior.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "":
		return VisibilityPrivate, nil
	case string(VisibilityPublic):
		return VisibilityPublic, nil
	case string(VisibilityPrivate):
		return VisibilityPrivate, nil
	default:
		return "", fmt.Errorf("unknown visibility %q", s)
	}
}

// Item represents a hidden item entry. Items are immutable after creation;
// the only lifecycle transition is deletion.
type Item struct {
	ID          string     `json:"item_id"`
	SecretKey   string     `json:"secret_key,omitempty"`
	Visibility  Visibility `json:"visibility"`
	Category    string     `json:"category,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	ImageURL    string     `json:"image_url"`
	CreatedAt   time.Time  `json:"created_at"`
}

// WithoutSecret returns a copy safe to hand back to non-admin callers.
// The secret key is a credential and is never echoed in responses.
func (i *Item) WithoutSecret() *Item {
	c := *i
	c.SecretKey = ""
	return &c
}

// PublicItemSummary is the projection served by the public listing.
type PublicItemSummary struct {
	ItemID    string  `json:"item_id"`
	Title     string  `json:"title"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Category  string  `json:"category"`
}

// ItemHiddenEvent is published to RabbitMQ after an item is created.
type ItemHiddenEvent struct {
	ItemID     string     `json:"item_id"`
	Visibility Visibility `json:"visibility"`
	Category   string     `json:"category,omitempty"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ItemDeletedEvent is published to RabbitMQ after an item is removed.
type ItemDeletedEvent struct {
	ItemID    string    `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
}
