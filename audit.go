package socialn

import (
	"context"

	internalaudit "github.com/socialn/socialn/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one audit record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the Engine's async dispatcher.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewZapSink logs each event through logger, at Info for successes and Warn
// for failures.
func NewZapSink(logger *zap.Logger) AuditSink {
	return internalaudit.NewZapSink(logger)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID string, err error, metadata func() map[string]string) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		if event.Metadata == nil {
			event.Metadata = make(map[string]string, 1)
		}
		event.Metadata["user_agent"] = ua
	}

	e.audit.Emit(ctx, event)
}

// AuditDropped reports how many audit events were dropped because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

