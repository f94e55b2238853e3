package chore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/choreboard/internal/model"
	"github.com/dukerupert/choreboard/internal/notify"
	"github.com/dukerupert/choreboard/internal/store"
)

// Service drives the claim and completion flows: the instance status
// transition, the points award through the ledger, and the courtesy
// notification. Status transitions and ledger writes are each atomic on
// their own; a completion whose award fails leaves a completed instance with
// no points, which the error surfaces to the caller.
type Service struct {
	instances *store.InstanceStore
	chores    *store.ChoreStore
	scores    *store.ScoreStore
	notifier  *notify.Service
	logger    *slog.Logger
}

func NewService(instances *store.InstanceStore, chores *store.ChoreStore, scores *store.ScoreStore, notifier *notify.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		instances: instances,
		chores:    chores,
		scores:    scores,
		notifier:  notifier,
		logger:    logger,
	}
}

// Claim marks an available instance as claimed by the member. Losing a claim
// race surfaces as store.ErrInvalidTransition.
func (s *Service) Claim(instanceID, memberID int64) (*model.ChoreInstance, error) {
	inst, err := s.instances.Claim(instanceID, memberID)
	if err != nil {
		return nil, fmt.Errorf("claim instance: %w", err)
	}
	s.logger.Info("instance claimed", "instance_id", instanceID, "member_id", memberID)
	return inst, nil
}

// Start marks a claimed or available instance as in progress.
func (s *Service) Start(instanceID int64) (*model.ChoreInstance, error) {
	inst, err := s.instances.Start(instanceID)
	if err != nil {
		return nil, fmt.Errorf("start instance: %w", err)
	}
	return inst, nil
}

// Complete finishes an instance for the member: transition the row, award
// the chore's base points through the ledger, and notify the member. The
// transition is the serialization point; once it succeeds this caller owns
// the award.
func (s *Service) Complete(ctx context.Context, instanceID, memberID int64) (*model.ChoreInstance, *model.PointTransaction, error) {
	inst, err := s.instances.GetByID(instanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("get instance: %w", err)
	}
	if inst == nil {
		return nil, nil, fmt.Errorf("instance %d not found: %w", instanceID, store.ErrInvalidTransition)
	}

	ch, err := s.chores.GetByID(inst.ChoreID)
	if err != nil {
		return nil, nil, fmt.Errorf("get chore: %w", err)
	}
	if ch == nil {
		return nil, nil, fmt.Errorf("chore %d not found for instance %d", inst.ChoreID, instanceID)
	}

	now := time.Now().UTC()
	inst, err = s.instances.Complete(instanceID, memberID, ch.BasePoints, now)
	if err != nil {
		return nil, nil, fmt.Errorf("complete instance: %w", err)
	}

	var txn *model.PointTransaction
	if ch.BasePoints > 0 {
		instID := inst.ID
		txn, err = s.scores.AdjustPoints(store.AdjustParams{
			MemberID:           memberID,
			HouseholdID:        ch.HouseholdID,
			Type:               model.TxEarned,
			Amount:             ch.BasePoints,
			SourceType:         model.SourceChore,
			SourceID:           &instID,
			Description:        fmt.Sprintf("Completed %s", ch.Title),
			IncrementCompleted: true,
			CompletedAt:        now,
		})
		if err != nil {
			return inst, nil, fmt.Errorf("award points: %w", err)
		}

		if s.notifier != nil {
			_, nerr := s.notifier.Notify(ctx, notify.Params{
				MemberID:    memberID,
				HouseholdID: ch.HouseholdID,
				Type:        model.NotifPointsAwarded,
				Title:       fmt.Sprintf("You earned %d points", ch.BasePoints),
				Message:     fmt.Sprintf("%s completed.", ch.Title),
				Link:        fmt.Sprintf("/instances/%d", inst.ID),
			})
			if nerr != nil {
				s.logger.Warn("points notification failed", "instance_id", inst.ID, "error", nerr)
			}
		}
	}

	s.logger.Info("instance completed",
		"instance_id", inst.ID, "member_id", memberID, "points", ch.BasePoints)
	return inst, txn, nil
}

// Spend deducts points for a reward redemption or other debit. The ledger
// rejects overdrafts with store.ErrInsufficientBalance.
func (s *Service) Spend(memberID, householdID int64, amount int, description string) (*model.PointTransaction, error) {
	if amount > 0 {
		amount = -amount
	}
	txn, err := s.scores.AdjustPoints(store.AdjustParams{
		MemberID:    memberID,
		HouseholdID: householdID,
		Type:        model.TxSpent,
		Amount:      amount,
		SourceType:  model.SourceReward,
		Description: description,
	})
	if err != nil {
		return nil, fmt.Errorf("spend points: %w", err)
	}
	return txn, nil
}
