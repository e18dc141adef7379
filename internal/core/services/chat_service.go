package services

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"vlsnet/internal/core/domain"
	"vlsnet/internal/core/ports"
	"vlsnet/pkg/tracing"
	"vlsnet/pkg/utils"

	"go.uber.org/zap"
)

type ChatConfig struct {
	MaxMessageRunes int
	HistoryLimit    int
}

type chatService struct {
	messageRepo ports.ChatMessageRepository
	moderation  ports.ModerationService
	fanout      ports.ChatFanout
	metrics     ports.ChatMetrics
	logger      *zap.SugaredLogger
	cfg         ChatConfig
}

func NewChatService(
	messageRepo ports.ChatMessageRepository,
	moderation ports.ModerationService,
	fanout ports.ChatFanout,
	metrics ports.ChatMetrics,
	logger *zap.SugaredLogger,
	cfg ChatConfig,
) ports.ChatService {
	if cfg.MaxMessageRunes <= 0 || cfg.MaxMessageRunes > domain.MaxChatMessageRunes {
		cfg.MaxMessageRunes = domain.MaxChatMessageRunes
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	if metrics == nil {
		metrics = NopMetrics
	}
	return &chatService{
		messageRepo: messageRepo,
		moderation:  moderation,
		fanout:      fanout,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// HandleInbound validates, moderates, persists and broadcasts one message.
// A moderation drop returns domain.ErrMessageDropped and is not reported to
// the sender. Invalid content returns domain.ErrInvalidChatInput.
func (s *chatService) HandleInbound(ctx context.Context, streamID domain.StreamID, author domain.Actor, raw string) (*domain.ChatMessage, error) {
	ctx, span := tracing.TraceChatMessage(ctx, int64(streamID), int64(author.ID))
	defer span.End()

	content := utils.SanitizeString(raw)
	if content == "" {
		return nil, fmt.Errorf("%w: content is empty", domain.ErrInvalidChatInput)
	}
	if n := utf8.RuneCountInString(content); n > s.cfg.MaxMessageRunes {
		return nil, fmt.Errorf("%w: content is %d characters, max %d", domain.ErrInvalidChatInput, n, s.cfg.MaxMessageRunes)
	}

	verdict, err := s.moderation.CheckMessage(ctx, streamID, author.ID)
	if err != nil {
		s.metrics.MessageDropped("moderation_error")
		s.logger.Warnw("moderation check failed, dropping message",
			"stream_id", streamID,
			"user_id", author.ID,
			"error", err,
		)
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("%w: %v", domain.ErrMessageDropped, err)
	}
	if verdict != domain.VerdictAllow {
		s.metrics.MessageDropped(verdict.String())
		s.logger.Debugw("message dropped",
			"stream_id", streamID,
			"user_id", author.ID,
			"verdict", verdict.String(),
		)
		tracing.AddSpanAttributes(ctx, tracing.OutcomeKey.String(verdict.String()))
		return nil, domain.ErrMessageDropped
	}

	msg := &domain.ChatMessage{
		StreamID: streamID,
		UserID:   author.ID,
		Content:  content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		s.metrics.PersistFailed()
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to persist chat message: %w", err)
	}

	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat message: %w", err)
	}

	delivered := s.fanout.Broadcast(streamID, frame)
	s.metrics.MessageBroadcast(delivered)
	tracing.AddSpanAttributes(ctx, tracing.OutcomeKey.String("broadcast"))

	return msg, nil
}

// History returns up to limit recent messages; limit is clamped to the
// configured maximum.
func (s *chatService) History(ctx context.Context, streamID domain.StreamID, limit int) ([]*domain.ChatMessage, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	msgs, err := s.messageRepo.ListRecent(ctx, streamID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	return msgs, nil
}
