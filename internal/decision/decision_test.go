package decision_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"postgate/internal/decision"
	"postgate/internal/logging"
	"postgate/internal/queue"
	"postgate/internal/testsupport"
)

func TestDecideApprovesAndRejects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	decider := decision.New(store, logging.NewNop())

	a := testsupport.NewPending(t, store, "to approve")
	b := testsupport.NewPending(t, store, "to reject")

	approved, err := decider.Decide(context.Background(), a.ID, queue.DecisionApprove)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != queue.StatusApproved || approved.ProcessedAt == nil {
		t.Fatalf("unexpected approved item %+v", approved)
	}
	rejected, err := decider.Decide(context.Background(), b.ID, queue.DecisionReject)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != queue.StatusRejected {
		t.Fatalf("unexpected rejected item %+v", rejected)
	}

	pending, err := store.List(context.Background(), queue.CollectionPending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending, got %d", len(pending))
	}
}

func TestSecondDecisionExplainsAlreadyDecided(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	decider := decision.New(store, logging.NewNop())
	item := testsupport.NewPending(t, store, "once")

	if _, err := decider.Decide(context.Background(), item.ID, queue.DecisionReject); err != nil {
		t.Fatalf("first decision failed: %v", err)
	}
	_, err := decider.Decide(context.Background(), item.ID, queue.DecisionApprove)
	if !queue.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	explained := decider.Explain(context.Background(), item.ID, err)
	if explained.Outcome != decision.OutcomeAlreadyDecided || explained.Status != queue.StatusRejected {
		t.Fatalf("unexpected explanation %+v", explained)
	}

	stored, err := store.Get(context.Background(), queue.CollectionProcessed, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != queue.StatusRejected {
		t.Fatalf("second decision overwrote the first: %s", stored.Status)
	}
}

func TestExplainUnknownID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	decider := decision.New(store, logging.NewNop())

	_, err := decider.Decide(context.Background(), "nope", queue.DecisionApprove)
	explained := decider.Explain(context.Background(), "nope", err)
	if explained.Outcome != decision.OutcomeNotFound {
		t.Fatalf("expected not found, got %+v", explained)
	}
	if other := decider.Explain(context.Background(), "x", errors.New("disk full")); other.Outcome != decision.OutcomeFailed {
		t.Fatalf("expected generic failure, got %+v", other)
	}
}

func TestConcurrentDecisionsExactlyOneWins(t *testing.T) {
	for _, backend := range []string{"files", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithBackend(backend))
			store := testsupport.MustOpenStore(t, cfg)
			item := testsupport.NewPending(t, store, "contested")

			approver := decision.New(store, logging.NewNop())
			rejecter := decision.New(testsupport.MustOpenStore(t, cfg), logging.NewNop())

			var wg sync.WaitGroup
			errs := make([]error, 2)
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, errs[0] = approver.Decide(context.Background(), item.ID, queue.DecisionApprove)
			}()
			go func() {
				defer wg.Done()
				_, errs[1] = rejecter.Decide(context.Background(), item.ID, queue.DecisionReject)
			}()
			wg.Wait()

			wins := 0
			for _, err := range errs {
				switch {
				case err == nil:
					wins++
				case queue.IsNotFound(err):
				default:
					t.Fatalf("unexpected error kind: %v", err)
				}
			}
			if wins != 1 {
				t.Fatalf("expected exactly one winner, got %d (%v)", wins, errs)
			}

			stored, err := store.Get(context.Background(), queue.CollectionProcessed, item.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			winner := queue.StatusApproved
			if errs[0] != nil {
				winner = queue.StatusRejected
			}
			if stored.Status != winner {
				t.Fatalf("stored status %s does not match winner %s", stored.Status, winner)
			}
			if _, err := store.Get(context.Background(), queue.CollectionPending, item.ID); !queue.IsNotFound(err) {
				t.Fatalf("expected item gone from pending, got %v", err)
			}
		})
	}
}
