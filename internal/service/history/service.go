// Package history archives terminal calls out of the live signaling store:
// the call record into relational storage and the chat transcript into the
// wide-column store. Archival is strictly best-effort; it runs inside the
// teardown window and must never delay or fail a hangup.
package history

import (
	"context"

	"go.uber.org/zap"

	"telecare-calling/internal/domain"
	"telecare-calling/pkg/logger"
	"telecare-calling/pkg/metrics"
)

// CallStore persists archived call records.
type CallStore interface {
	Insert(ctx context.Context, session *domain.CallSession) error
}

// TranscriptStore persists archived chat transcripts.
type TranscriptStore interface {
	Save(callID string, messages []domain.ChatMessage) error
}

// Service implements the archival hook invoked at call teardown.
type Service struct {
	calls       CallStore
	transcripts TranscriptStore
}

// NewService creates a new Service. Either store may be nil when that
// archive is not deployed.
func NewService(calls CallStore, transcripts TranscriptStore) *Service {
	return &Service{calls: calls, transcripts: transcripts}
}

// ArchiveCall records one finished call. Failures are logged and counted,
// never returned; the session document remains the fallback source of truth.
func (s *Service) ArchiveCall(ctx context.Context, session *domain.CallSession) {
	if session == nil || !session.Status.Terminal() {
		return
	}

	if s.calls != nil {
		if err := s.calls.Insert(ctx, session); err != nil {
			logger.Warn("failed to archive call record",
				zap.String("call_id", session.ID), zap.Error(err))
			metrics.HistoryArchivedTotal.WithLabelValues("error").Inc()
		} else {
			metrics.HistoryArchivedTotal.WithLabelValues("ok").Inc()
		}
	}

	if s.transcripts != nil && len(session.Messages) > 0 {
		if err := s.transcripts.Save(session.ID, session.Messages); err != nil {
			logger.Warn("failed to archive call transcript",
				zap.String("call_id", session.ID), zap.Error(err))
		}
	}
}
