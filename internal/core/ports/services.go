package ports

import (
	"context"
	"time"

	"vlsnet/internal/core/domain"
)

type CredentialService interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	ValidateComplexity(password string) error
}

type TokenService interface {
	IssueAccessToken(identity *domain.Identity, ttl time.Duration) (string, error)
	VerifyAccessToken(token string) (*domain.Claims, error)
	IssueRefreshToken(ctx context.Context, email string) (string, error)
	RedeemRefreshToken(ctx context.Context, token string) (string, error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

type LockoutService interface {
	IsLocked(ctx context.Context, email string) (bool, error)
	// RecordFailure reports whether this failure triggered the lockout.
	RecordFailure(ctx context.Context, email string) (bool, error)
	Reset(ctx context.Context, email string) error
}

type ModerationService interface {
	CheckAdmission(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (domain.Verdict, error)
	CheckMessage(ctx context.Context, streamID domain.StreamID, userID domain.UserID) (domain.Verdict, error)
	SetModeration(ctx context.Context, actor domain.Actor, streamID domain.StreamID, target domain.UserID, update domain.ModerationUpdate) (*domain.ModerationRecord, error)
	GetModeration(ctx context.Context, actor domain.Actor, streamID domain.StreamID, target domain.UserID) (*domain.ModerationRecord, error)
}

// Subscriber is one live receiver of chat frames.
type Subscriber interface {
	ID() string
	// Send enqueues frame without blocking; an error means the subscriber
	// is gone or cannot keep up.
	Send(frame []byte) error
}

// ChatFanout delivers frames to every subscriber of a stream.
type ChatFanout interface {
	Subscribe(streamID domain.StreamID, sub Subscriber)
	Unsubscribe(streamID domain.StreamID, sub Subscriber)
	UnsubscribeAll(sub Subscriber)
	Broadcast(streamID domain.StreamID, frame []byte) int
	SubscriberCount(streamID domain.StreamID) int
	StreamCount() int
}

type ChatService interface {
	HandleInbound(ctx context.Context, streamID domain.StreamID, author domain.Actor, raw string) (*domain.ChatMessage, error)
	History(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error)
}

type AuthService interface {
	Register(ctx context.Context, email, password string, role domain.Role) (*domain.TokenPair, error)
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AccessTokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, claims *domain.Claims) (*domain.Identity, error)
}

type StreamService interface {
	CreateStream(ctx context.Context, actor domain.Actor, title, description string, isPublic bool) (*domain.Stream, error)
	GetStream(ctx context.Context, id domain.StreamID) (*domain.Stream, error)
	ListStreams(ctx context.Context, filter domain.StreamFilter) ([]*domain.Stream, error)
	UpdateStream(ctx context.Context, actor domain.Actor, id domain.StreamID, update domain.StreamUpdate) (*domain.Stream, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, id domain.StreamID, status domain.StreamStatus) (*domain.Stream, error)
	DeleteStream(ctx context.Context, actor domain.Actor, id domain.StreamID) error
	IngestURL(ctx context.Context, actor domain.Actor, id domain.StreamID) (string, error)
	PlaybackURL(ctx context.Context, id domain.StreamID) (string, error)
	HandleIngestEvent(ctx context.Context, streamKey string, started bool) (*domain.Stream, error)
}

// ChatMetrics receives chat pipeline and transport events.
type ChatMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	MessageBroadcast(deliveries int)
	MessageDropped(reason string)
	PersistFailed()
	SubscriberPruned()
}

// AuthMetrics receives session flow outcomes.
type AuthMetrics interface {
	LoginOutcome(outcome string)
	LockoutTriggered()
}
