package domain

import "time"

// ModerationRecord is unique per (StreamID, UserID).
type ModerationRecord struct {
	ID        int64     `json:"id"`
	StreamID  StreamID  `json:"stream_id"`
	UserID    UserID    `json:"user_id"`
	IsMuted   bool      `json:"is_muted"`
	IsBanned  bool      `json:"is_banned"`
	CreatedAt time.Time `json:"created_at"`
}

// ModerationUpdate is a partial update; nil fields keep their current value.
type ModerationUpdate struct {
	IsMuted  *bool `json:"is_muted"`
	IsBanned *bool `json:"is_banned"`
}

// Apply merges u into rec.
func (u ModerationUpdate) Apply(rec *ModerationRecord) {
	if u.IsMuted != nil {
		rec.IsMuted = *u.IsMuted
	}
	if u.IsBanned != nil {
		rec.IsBanned = *u.IsBanned
	}
}

type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictMuted
	VerdictBanned
)

func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictMuted:
		return "muted"
	case VerdictBanned:
		return "banned"
	}
	return "unknown"
}
