package task

import (
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/choreboard/internal/database"
	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/notify"
	"github.com/dukerupert/choreboard/internal/store"
)

// taskFixture wires every store against one in-memory database, the way the
// jobs see them in production.
type taskFixture struct {
	db            *sql.DB
	households    *store.HouseholdStore
	chores        *store.ChoreStore
	instances     *store.InstanceStore
	scores        *store.ScoreStore
	leaderboards  *store.LeaderboardStore
	notifications *store.NotificationStore
	notifier      *notify.Service
	logger        *slog.Logger

	household *model.Household
	alice     *model.Member
	bob       *model.Member
}

func setupTaskTest(t *testing.T) *taskFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.DiscardHandler)
	f := &taskFixture{
		db:            db,
		households:    store.NewHouseholdStore(db),
		chores:        store.NewChoreStore(db),
		instances:     store.NewInstanceStore(db),
		scores:        store.NewScoreStore(db),
		leaderboards:  store.NewLeaderboardStore(db),
		notifications: store.NewNotificationStore(db),
		logger:        logger,
	}
	f.notifier = notify.NewService(f.notifications, store.NewPushStore(db), nil, nil, logger)

	f.household, err = f.households.Create("Smiths", "UTC")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	f.alice, err = f.households.CreateMember(f.household.ID, "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	f.bob, err = f.households.CreateMember(f.household.ID, "Bob", "")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	return f
}

// dueInstance creates a one-instance chore and returns the instance.
func (f *taskFixture) dueInstance(t *testing.T, title string, assignedTo *int64, due time.Time) *model.ChoreInstance {
	t.Helper()
	ch, err := f.chores.Create(store.CreateParams{
		HouseholdID: f.household.ID,
		Title:       title,
		BasePoints:  10,
	})
	if err != nil {
		t.Fatalf("create chore: %v", err)
	}
	inst, _, err := f.instances.GetOrCreate(ch.ID, assignedTo, due)
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}
	return inst
}

func (f *taskFixture) memberNotifications(t *testing.T, memberID int64) []model.Notification {
	t.Helper()
	notifs, err := f.notifications.ListByMember(memberID, 50)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return notifs
}
