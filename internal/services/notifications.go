package services

import (
	"context"
	"fmt"

	"github.com/yukikurage/favor-exchange-api/internal/notify"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"go.uber.org/zap"
)

// notifier resolves recipients and hands messages to the dispatcher. It runs
// after the triggering transaction committed and never reports failure.
type notifier struct {
	gw         *repository.Gateway
	dispatcher *notify.Dispatcher
	logger     *zap.Logger
}

func (n notifier) toUser(ctx context.Context, userID uint64, event notify.Event, subject, body string) {
	if n.dispatcher == nil || userID == 0 {
		return
	}

	user, err := n.gw.Repos().Users.FindByID(ctx, userID)
	if err != nil {
		n.logger.Warn("notification recipient lookup failed",
			zap.String("event", string(event)),
			zap.Uint64("user_id", userID),
			zap.Error(err),
		)
		return
	}

	n.dispatcher.Dispatch(ctx, notify.Message{
		Event:   event,
		To:      user.Email,
		Subject: subject,
		Body:    body,
	})
}

func requestSubject(prefix, title string) string {
	return fmt.Sprintf("%s: %s", prefix, title)
}
