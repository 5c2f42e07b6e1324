package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Sender delivers one notification to a channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a notification out to its senders. Delivery is fire and
// forget: failures are logged and never propagate to the trading path.
type Notifier struct {
	senders []Sender
	logger  *logrus.Logger
}

func NewNotifier(logger *logrus.Logger, senders ...Sender) *Notifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &Notifier{senders: senders, logger: logger}
}

// Notify sends to all configured channels.
func (n *Notifier) Notify(ctx context.Context, title, message string) {
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.WithError(err).WithField("sender", s.Name()).Warn("notification delivery failed")
		}
	}
}
