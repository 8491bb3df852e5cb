// Package decision applies operator verdicts to pending queue items.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"postgate/internal/logging"
	"postgate/internal/queue"
)

// Decider moves pending items into processed with a decision stamp.
type Decider struct {
	store  queue.Store
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Decider.
func New(store queue.Store, logger *slog.Logger) *Decider {
	return &Decider{
		store:  store,
		logger: logging.NewComponentLogger(logger, "decision"),
		now:    time.Now,
	}
}

// Decide approves or rejects id. When two decisions race, exactly one
// succeeds; the other returns a *queue.NotFoundError.
func (d *Decider) Decide(ctx context.Context, id string, decision queue.Decision) (queue.Item, error) {
	item, err := d.store.Move(ctx, id, queue.CollectionPending, queue.CollectionProcessed, queue.ApplyDecision(decision, d.now()))
	if err != nil {
		d.logger.Info("decision not applied",
			logging.String(logging.FieldItemID, id),
			logging.String("decision", string(decision)),
			logging.String(logging.FieldErrorKind, queue.KindOf(err)),
			logging.Error(err),
		)
		return queue.Item{}, err
	}
	d.logger.Info("item decided",
		logging.String(logging.FieldItemID, id),
		logging.String(logging.FieldEventType, "item_decided"),
		logging.String("status", string(item.Status)),
	)
	return item, nil
}

// Outcome classifies a failed decision for user-facing replies.
type Outcome string

const (
	OutcomeAlreadyDecided Outcome = "already_decided"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeFailed         Outcome = "failed"
)

// Explanation is a user-facing account of why a decision did not apply.
type Explanation struct {
	Outcome Outcome
	// Status is the current status when the item was already decided.
	Status  queue.Status
	Message string
}

// Explain turns a Decide error into a message. An id missing from pending is
// looked up in processed so a losing racer learns the item was already
// handled.
func (d *Decider) Explain(ctx context.Context, id string, err error) Explanation {
	var invalid *queue.InvalidTransitionError
	switch {
	case errors.As(err, &invalid):
		return Explanation{
			Outcome: OutcomeAlreadyDecided,
			Status:  invalid.From,
			Message: fmt.Sprintf("Item %s was already %s", id, invalid.From),
		}
	case queue.IsNotFound(err):
		existing, getErr := d.store.Get(ctx, queue.CollectionProcessed, id)
		if getErr == nil {
			return Explanation{
				Outcome: OutcomeAlreadyDecided,
				Status:  existing.Status,
				Message: fmt.Sprintf("Item %s was already %s", id, existing.Status),
			}
		}
		return Explanation{Outcome: OutcomeNotFound, Message: fmt.Sprintf("Item %s not found", id)}
	default:
		return Explanation{Outcome: OutcomeFailed, Message: "An error occurred. Please try again."}
	}
}
