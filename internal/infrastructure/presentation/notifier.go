package presentation

import (
	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(msg domain.Notification) {
	n.log.Info().Str("title", msg.Title).Str("description", msg.Description).Msg("notification")
}

// Fanout delivers every notification to each of its notifiers in order.
type Fanout []ports.Notifier

func (f Fanout) Notify(msg domain.Notification) {
	for _, n := range f {
		n.Notify(msg)
	}
}
