// Package model defines the records the playground persists.
package model

import "time"

// Snippet is a saved piece of JavaScript a visitor can reload and run.
type Snippet struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
