package models

import "time"

// Theme is the display theme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// SessionState is the whole domain state persisted under one root key per user.
// External blocks are never part of it.
type SessionState struct {
	Blocks  []TimeBlock    `json:"time_blocks"`
	Filters CategoryFilter `json:"filters"`
	Theme   Theme          `json:"theme"`
	Auth    AuthSnapshot   `json:"auth"`
	SavedAt time.Time      `json:"saved_at"`
}
