package task

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/choreboard/internal/store"

	"go.uber.org/multierr"
)

// Pruner deletes notifications and finished instances past their retention
// windows, plus leaderboard windows old enough that nothing reads them. The
// transaction ledger is never pruned.
type Pruner struct {
	notifications     *store.NotificationStore
	instances         *store.InstanceStore
	leaderboards      *store.LeaderboardStore
	notificationDays  int
	instanceDays      int
	logger            *slog.Logger
}

func NewPruner(notifications *store.NotificationStore, instances *store.InstanceStore, leaderboards *store.LeaderboardStore, notificationDays, instanceDays int, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		notifications:    notifications,
		instances:        instances,
		leaderboards:     leaderboards,
		notificationDays: notificationDays,
		instanceDays:     instanceDays,
		logger:           logger,
	}
}

func (p *Pruner) Name() string { return "prune" }

func (p *Pruner) Run(now time.Time) error {
	var errs error

	cutoff := now.AddDate(0, 0, -p.notificationDays)
	n, err := p.notifications.DeleteOlderThan(cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune notifications: %w", err))
	} else if n > 0 {
		p.logger.Info("pruned notifications", "deleted", n, "cutoff", cutoff.Format("2006-01-02"))
	}

	cutoff = now.AddDate(0, 0, -p.instanceDays)
	n, err = p.instances.DeleteTerminalBefore(cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune instances: %w", err))
	} else if n > 0 {
		p.logger.Info("pruned instances", "deleted", n, "cutoff", cutoff.Format("2006-01-02"))
	}

	n, err = p.leaderboards.DeleteWindowsBefore(cutoff.Format("2006-01-02"))
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("prune leaderboards: %w", err))
	} else if n > 0 {
		p.logger.Info("pruned leaderboard windows", "deleted", n)
	}

	return errs
}
