package usecase

import (
	"log/slog"
	"time"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

type nopObserver struct{}

func (nopObserver) SourceProcessed(int, int, domain.ValidationStatus) {}
func (nopObserver) RewriteFinished(error)                             {}
func (nopObserver) CreditRestored(domain.ResourceType)                {}
func (nopObserver) PublishFinished(error)                             {}
func (nopObserver) IntegrityChecked(int, int)                         {}

var _ ports.Observer = nopObserver{}

func observerOrNop(o ports.Observer) ports.Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}

func loggerOrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return now
}
