package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/push"
	"github.com/dukerupert/choreboard/internal/store"

	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"
)

// Pusher delivers one web push message to a subscription.
type Pusher interface {
	Configured() bool
	Send(sub *model.PushSubscription, payload push.Payload) error
}

// Mailer delivers one email.
type Mailer interface {
	Configured() bool
	Send(toEmail, subject, textBody, htmlBody string) error
}

// Service persists notifications and fans them out to push subscriptions and
// email. The stored row is the source of truth; delivery is best effort and
// never fails the caller.
type Service struct {
	notifications *store.NotificationStore
	subs          *store.PushStore
	pusher        Pusher
	mailer        Mailer
	logger        *slog.Logger
}

func NewService(notifications *store.NotificationStore, subs *store.PushStore, pusher Pusher, mailer Mailer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		notifications: notifications,
		subs:          subs,
		pusher:        pusher,
		mailer:        mailer,
		logger:        logger,
	}
}

// Params describes one notification to record and deliver.
type Params struct {
	MemberID    int64
	HouseholdID int64
	Type        string
	Title       string
	Message     string
	Link        string

	// Email, when set, also sends the notification to this address.
	Email     string
	EmailHTML string
}

// Notify stores the notification, then attempts push and email delivery.
// Only the store write can fail; delivery problems are logged and dropped.
func (s *Service) Notify(ctx context.Context, p Params) (*model.Notification, error) {
	n, err := s.notifications.Create(p.MemberID, p.HouseholdID, p.Type, p.Title, p.Message, p.Link)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if err := s.deliverPush(ctx, p); err != nil {
		s.logger.Warn("push delivery failed",
			"member_id", p.MemberID, "type", p.Type, "error", err)
	}
	if err := s.deliverEmail(ctx, p); err != nil {
		s.logger.Warn("email delivery failed",
			"member_id", p.MemberID, "type", p.Type, "error", err)
	}

	return n, nil
}

func (s *Service) deliverPush(ctx context.Context, p Params) error {
	if s.pusher == nil || !s.pusher.Configured() {
		return nil
	}

	subs, err := s.subs.ListByMember(p.MemberID)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	payload := push.Payload{
		Title: p.Title,
		Body:  p.Message,
		URL:   p.Link,
		Tag:   p.Type,
	}

	var errs error
	for i := range subs {
		sub := subs[i]
		err := retry.Do(ctx, sendBackoff(), func(ctx context.Context) error {
			err := s.pusher.Send(&sub, payload)
			if errors.Is(err, push.ErrExpired) {
				// Gone endpoints are cleaned up, not retried.
				if delErr := s.subs.DeleteByEndpoint(sub.Endpoint); delErr != nil {
					return delErr
				}
				s.logger.Info("removed expired push subscription",
					"member_id", p.MemberID, "endpoint", sub.Endpoint)
				return nil
			}
			if err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("endpoint %s: %w", sub.Endpoint, err))
		}
	}
	return errs
}

func (s *Service) deliverEmail(ctx context.Context, p Params) error {
	if s.mailer == nil || !s.mailer.Configured() || p.Email == "" {
		return nil
	}

	return retry.Do(ctx, sendBackoff(), func(ctx context.Context) error {
		if err := s.mailer.Send(p.Email, p.Title, p.Message, p.EmailHTML); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func sendBackoff() retry.Backoff {
	return retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
}
