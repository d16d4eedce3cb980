package models

import (
	"encoding/json"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // не отдаём наружу
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the user-editable part of an account (Settings page).
type Profile struct {
	ID                      string          `json:"id"`
	Email                   string          `json:"email"`
	FullName                *string         `json:"full_name"`
	AvatarURL               *string         `json:"avatar_url"`
	Phone                   *string         `json:"phone"`
	JobTitle                *string         `json:"job_title"`
	Department              *string         `json:"department"`
	Timezone                string          `json:"timezone"`
	NotificationPreferences json.RawMessage `json:"notification_preferences"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// ProfileUpdate carries only the fields a caller sent.
type ProfileUpdate struct {
	FullName                *string          `json:"full_name"`
	AvatarURL               *string          `json:"avatar_url"`
	Phone                   *string          `json:"phone"`
	JobTitle                *string          `json:"job_title"`
	Department              *string          `json:"department"`
	Timezone                *string          `json:"timezone"`
	NotificationPreferences *json.RawMessage `json:"notification_preferences"`
}

// WantsEmail reports whether the named notification preference is on.
// Absent or malformed preferences count as off.
func (p *Profile) WantsEmail(pref string) bool {
	if p == nil || len(p.NotificationPreferences) == 0 {
		return false
	}
	var prefs map[string]bool
	if err := json.Unmarshal(p.NotificationPreferences, &prefs); err != nil {
		return false
	}
	return prefs[pref]
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name"`
}
