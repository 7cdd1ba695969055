package entity

import "time"

type User struct {
	ID       string `json:"id" validate:"required"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"` // "student", "moderator", "admin"
	Campus   string `json:"campus,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Session is the authenticated identity plus the credentials every outbound
// call and the socket handshake read. It is the only state the client
// persists between runs.
type Session struct {
	User         User      `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SavedAt      time.Time `json:"saved_at,omitempty"`
}
