package domain

import (
	"strconv"
	"time"
)

type StreamID int64

func (id StreamID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

type StreamStatus string

const (
	StreamScheduled StreamStatus = "scheduled"
	StreamLive      StreamStatus = "live"
	StreamEnded     StreamStatus = "ended"
)

func (s StreamStatus) Valid() bool {
	switch s {
	case StreamScheduled, StreamLive, StreamEnded:
		return true
	}
	return false
}

type Stream struct {
	ID          StreamID     `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      StreamStatus `json:"status"`
	StartTime   *time.Time   `json:"start_time,omitempty"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	StreamKey   string       `json:"stream_key,omitempty"`
	OwnerID     UserID       `json:"owner_id"`
	IsPublic    bool         `json:"is_public"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// CanManage reports whether the actor owns the stream or is an admin.
func (s *Stream) CanManage(actor Actor) bool {
	return actor.IsAdmin() || s.OwnerID == actor.ID
}

// ViewFor returns a copy safe to serialize for actor: the stream key is kept
// only for the owner or an admin.
func (s *Stream) ViewFor(actor *Actor) Stream {
	out := *s
	if actor == nil || !s.CanManage(*actor) {
		out.StreamKey = ""
	}
	return out
}

// StreamFilter narrows ListStreams; zero values mean "any".
type StreamFilter struct {
	Status   StreamStatus
	OwnerID  UserID
	IsPublic *bool
	Limit    int
	Offset   int
}

// StreamUpdate is a partial update of the editable stream fields.
type StreamUpdate struct {
	Title       *string
	Description *string
	IsPublic    *bool
	Status      *StreamStatus
	StartTime   *time.Time
	EndTime     *time.Time
}
