package models

import "time"

// Profile is the public document for one authenticated identity.
type Profile struct {
	UID           string `json:"uid"`
	Name          string `json:"name"`
	FriendCode    string `json:"friendCode"`
	CreatedAt     int64  `json:"createdAt"`
	TotalWords    int64  `json:"totalWords"`
	TotalSessions int64  `json:"totalSessions"`
	LastSync      int64  `json:"lastSync,omitempty"`
}

// FriendEdge is a directed relation stored under the adding user. The
// name and code are a snapshot taken when the friend was added.
type FriendEdge struct {
	UID        string `json:"uid"`
	Name       string `json:"name"`
	FriendCode string `json:"friendCode"`
	AddedAt    int64  `json:"addedAt"`
}

// FriendView is a FriendEdge joined with the friend's live profile.
type FriendView struct {
	FriendEdge
	Profile Profile `json:"profile"`
}

// Session is the authenticated identity for the current run. Operations
// that touch per-user remote documents take it explicitly.
type Session struct {
	UserID    string    `json:"uid"`
	Token     string    `json:"-"`
	Anonymous bool      `json:"anonymous"`
	StartedAt time.Time `json:"startedAt"`
}

// Millis converts t to epoch milliseconds, the unit every stored
// timestamp uses.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
