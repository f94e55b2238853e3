package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/choreboard/internal/config"
	"github.com/dukerupert/choreboard/internal/database"
	"github.com/dukerupert/choreboard/internal/email"
	"github.com/dukerupert/choreboard/internal/logging"
	"github.com/dukerupert/choreboard/internal/notify"
	"github.com/dukerupert/choreboard/internal/push"
	"github.com/dukerupert/choreboard/internal/scheduler"
	"github.com/dukerupert/choreboard/internal/server"
	"github.com/dukerupert/choreboard/internal/store"
	"github.com/dukerupert/choreboard/internal/task"

	"golang.org/x/sync/errgroup"
)

func main() {
	generateKeys := flag.Bool("generate-vapid-keys", false, "print a new VAPID key pair and exit")
	flag.Parse()

	if *generateKeys {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate VAPID keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("CHOREBOARD_VAPID_PUBLIC_KEY=%s\nCHOREBOARD_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "choreboard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFmt)

	defaultLoc, err := time.LoadLocation(cfg.DefaultTimezone)
	if err != nil {
		logger.Warn("invalid default timezone, using UTC", "timezone", cfg.DefaultTimezone)
		defaultLoc = time.UTC
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	households := store.NewHouseholdStore(db)
	chores := store.NewChoreStore(db)
	instances := store.NewInstanceStore(db)
	scores := store.NewScoreStore(db)
	leaderboards := store.NewLeaderboardStore(db)
	notifications := store.NewNotificationStore(db)
	pushSubs := store.NewPushStore(db)

	pusher := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	if !pusher.Configured() {
		logger.Info("VAPID keys not set, web push disabled")
	}
	mailer := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom)
	if !mailer.Configured() {
		logger.Info("Postmark token not set, email disabled")
	}

	notifier := notify.NewService(notifications, pushSubs, pusher, mailer, logger.With("component", "notify"))

	sched := scheduler.New(time.Minute, logger.With("component", "scheduler"))
	sched.Add(task.NewMaterializer(chores, instances, households, cfg.Lookahead(), defaultLoc,
		logger.With("job", "materialize")), cfg.MaterializeInterval)
	sched.Add(task.NewScanner(instances, chores, households, notifications, notifier,
		cfg.ReminderLeadTime, cfg.ReminderCooldown, logger.With("job", "scan")), cfg.ScanInterval)
	sched.Add(task.NewDigest(households, instances, chores, notifications, notifier,
		cfg.ReminderLeadTime, cfg.DigestTolerance(), defaultLoc, logger.With("job", "digest")), cfg.DigestInterval)
	sched.Add(task.NewAggregator(instances, scores, leaderboards, defaultLoc,
		logger.With("job", "aggregate")), cfg.RecomputeInterval)
	sched.Add(task.NewPruner(notifications, instances, leaderboards,
		cfg.NotificationRetentionDays, cfg.CompletedInstanceRetentionDays,
		logger.With("job", "prune")), cfg.PruneInterval)

	srv := server.New(db, sched, logger.With("component", "http"))
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
