package notify

import (
	"context"

	"go.uber.org/zap"

	"daily-puzzle-service/internal/domain"
)

// LogNotifier writes outbound announcements as structured log events. It
// stands in for the chat transport, which consumes the same signals.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notify")}
}

func (n *LogNotifier) ProblemOpened(_ context.Context, p domain.Problem) {
	n.log.Info("problem opened",
		zap.String("code", p.Code),
		zap.String("setter", p.Setter),
		zap.Int("difficulty", p.Difficulty),
		zap.String("topics", p.Topics),
		zap.Timep("closesAt", p.ClosesAt))
}

func (n *LogNotifier) ProblemClosed(_ context.Context, p domain.Problem) {
	n.log.Info("problem closed",
		zap.String("code", p.Code),
		zap.String("answer", p.Answer),
		zap.String("editorial", p.EditorialRef))
}

func (n *LogNotifier) Exhausted(_ context.Context) {
	n.log.Warn("no releasable problem remains; curators should create more")
}

func (n *LogNotifier) ReviewRequested(_ context.Context, p domain.Problem) {
	n.log.Info("problem awaiting review",
		zap.String("code", p.Code),
		zap.String("author", p.AuthorID))
}

func (n *LogNotifier) ReviewDecided(_ context.Context, p domain.Problem, approved bool, reason string) {
	n.log.Info("review decision",
		zap.String("code", p.Code),
		zap.String("author", p.AuthorID),
		zap.Bool("approved", approved),
		zap.String("reason", reason))
}
