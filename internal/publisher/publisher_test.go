package publisher_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"postgate/internal/decision"
	"postgate/internal/logging"
	"postgate/internal/publisher"
	"postgate/internal/queue"
	"postgate/internal/testsupport"
)

type fakeProvider struct {
	mu         sync.Mutex
	containers []string
	published  []string
	failFor    map[string]error
	next       int
}

func (f *fakeProvider) CreateContainer(_ context.Context, imageURL, caption string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[imageURL]; err != nil {
		return "", err
	}
	f.next++
	id := fmt.Sprintf("container-%d", f.next)
	f.containers = append(f.containers, imageURL+"|"+caption)
	return id, nil
}

func (f *fakeProvider) Publish(_ context.Context, containerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, containerID)
	return "media-" + containerID, nil
}

// stallingProvider blocks container creation for one image until the request context ends.
type stallingProvider struct {
	*fakeProvider
	stallFor string
}

func (s *stallingProvider) CreateContainer(ctx context.Context, imageURL, caption string) (string, error) {
	if imageURL == s.stallFor {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.fakeProvider.CreateContainer(ctx, imageURL, caption)
}

// shutdownProvider cancels the sweep right after a publish succeeds.
type shutdownProvider struct {
	*fakeProvider
	cancel context.CancelFunc
}

func (s *shutdownProvider) Publish(ctx context.Context, containerID string) (string, error) {
	postID, err := s.fakeProvider.Publish(ctx, containerID)
	s.cancel()
	return postID, err
}

func (f *fakeProvider) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func TestApproveThenPublish(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewPending(t, store, "latte art", testsupport.WithImage("https://img/latte.png"), testsupport.WithContent("Latte #art"))

	if _, err := decision.New(store, logging.NewNop()).Decide(context.Background(), item.ID, queue.DecisionApprove); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	provider := &fakeProvider{}
	pub := publisher.New(cfg, store, provider, logging.NewNop())
	result, err := pub.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Published != 1 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if provider.containers[0] != "https://img/latte.png|Latte #art" {
		t.Fatalf("unexpected container request %q", provider.containers[0])
	}

	stored, err := store.Get(context.Background(), queue.CollectionProcessed, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.Posted || stored.PostedAt == nil || stored.PostID != "media-container-1" || stored.PostError != "" {
		t.Fatalf("unexpected posted record %+v", stored)
	}
	if pub.Quota().Used() != 1 {
		t.Fatalf("expected quota 1, got %d", pub.Quota().Used())
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewApproved(t, store, "once", testsupport.WithImage("https://img/1.png"))

	provider := &fakeProvider{}
	pub := publisher.New(cfg, store, provider, logging.NewNop())
	for i := 0; i < 3; i++ {
		if _, err := pub.Sweep(context.Background()); err != nil {
			t.Fatalf("Sweep %d failed: %v", i, err)
		}
	}
	if provider.publishCount() != 1 {
		t.Fatalf("expected a single publish, got %d", provider.publishCount())
	}
}

func TestOverlappingSweepsPublishOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewApproved(t, store, "shared", testsupport.WithImage("https://img/1.png"))

	provider := &fakeProvider{}
	first := publisher.New(cfg, store, provider, logging.NewNop())
	if _, err := first.Sweep(context.Background()); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	second := publisher.New(cfg, testsupport.MustOpenStore(t, cfg), provider, logging.NewNop())
	result, err := second.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if result.Published != 0 || provider.publishCount() != 1 {
		t.Fatalf("second publisher reposted: %+v publishes=%d", result, provider.publishCount())
	}
}

func TestRejectedNeverSelected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewPending(t, store, "no thanks", testsupport.WithImage("https://img/no.png"))
	if _, err := decision.New(store, logging.NewNop()).Decide(context.Background(), item.ID, queue.DecisionReject); err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	testsupport.NewPending(t, store, "undecided", testsupport.WithImage("https://img/wait.png"))

	provider := &fakeProvider{}
	result, err := publisher.New(cfg, store, provider, logging.NewNop()).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Considered != 0 || len(provider.containers) != 0 {
		t.Fatalf("rejected or pending item was selected: %+v", result)
	}
}

func TestQuotaLimitsPublishesOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPostsPerDay(2))
	store := testsupport.MustOpenStore(t, cfg)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		item := testsupport.NewApproved(t, store, fmt.Sprintf("item %d", i),
			testsupport.WithImage(fmt.Sprintf("https://img/%d.png", i)),
			testsupport.CreatedAt(base.Add(time.Duration(2-i)*time.Hour)),
		)
		ids = append(ids, item.ID)
	}

	provider := &fakeProvider{}
	pub := publisher.New(cfg, store, provider, logging.NewNop())
	result, err := pub.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Published != 2 || !result.QuotaExhausted {
		t.Fatalf("unexpected result %+v", result)
	}
	if provider.containers[0] != "https://img/2.png|item 2" || provider.containers[1] != "https://img/1.png|item 1" {
		t.Fatalf("expected oldest first, got %v", provider.containers)
	}
	newest, err := store.Get(context.Background(), queue.CollectionProcessed, ids[0])
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if newest.Posted {
		t.Fatal("quota should have held back the newest item")
	}

	again, err := pub.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if !again.QuotaExhausted || again.Considered != 0 {
		t.Fatalf("exhausted quota should skip the sweep: %+v", again)
	}
}

func TestQuotaResetsOnNewDay(t *testing.T) {
	current := time.Date(2026, 5, 1, 23, 59, 0, 0, time.Local)
	quota := publisher.NewQuota(1, func() time.Time { return current })
	quota.Record()
	if !quota.Exhausted() || quota.Remaining() != 0 {
		t.Fatal("expected quota exhausted after one publish")
	}
	current = current.Add(2 * time.Minute)
	if quota.Exhausted() || quota.Used() != 0 || quota.Remaining() != 1 {
		t.Fatalf("expected reset on new day, used=%d", quota.Used())
	}
}

func TestFailureRecordedAndRetried(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	bad := testsupport.NewApproved(t, store, "bad", testsupport.WithImage("https://img/bad.png"), testsupport.CreatedAt(time.Now().Add(-time.Hour)))
	good := testsupport.NewApproved(t, store, "good", testsupport.WithImage("https://img/good.png"))

	provider := &fakeProvider{failFor: map[string]error{"https://img/bad.png": errors.New("media type not supported")}}
	pub := publisher.New(cfg, store, provider, logging.NewNop())
	result, err := pub.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Failed != 1 || result.Published != 1 {
		t.Fatalf("failure should not abort the sweep: %+v", result)
	}
	if pub.Quota().Used() != 1 {
		t.Fatalf("failures must not count against the quota, used=%d", pub.Quota().Used())
	}

	failed, err := store.Get(context.Background(), queue.CollectionProcessed, bad.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if failed.Posted || failed.Status != queue.StatusApproved || failed.PostError != "media type not supported" {
		t.Fatalf("unexpected failed record %+v", failed)
	}
	if !queue.EligibleForPublish(failed) {
		t.Fatal("failed item should stay eligible")
	}
	posted, _ := store.Get(context.Background(), queue.CollectionProcessed, good.ID)
	if !posted.Posted {
		t.Fatal("good item should be posted")
	}

	delete(provider.failFor, "https://img/bad.png")
	if _, err := pub.Sweep(context.Background()); err != nil {
		t.Fatalf("retry sweep failed: %v", err)
	}
	retried, _ := store.Get(context.Background(), queue.CollectionProcessed, bad.ID)
	if !retried.Posted || retried.PostError != "" {
		t.Fatalf("expected retry to post and clear error: %+v", retried)
	}
}

func TestItemsWithoutImageSkipped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewApproved(t, store, "text only")

	provider := &fakeProvider{}
	result, err := publisher.New(cfg, store, provider, logging.NewNop()).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Skipped != 1 || len(provider.containers) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	stored, _ := store.Get(context.Background(), queue.CollectionProcessed, item.ID)
	if !queue.EligibleForPublish(stored) || stored.PostError != "" {
		t.Fatalf("skipped item should remain eligible and unannotated: %+v", stored)
	}
}

func TestSettleDelayHonoursCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Publisher.SettleDelay = 60
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewApproved(t, store, "slow", testsupport.WithImage("https://img/slow.png"))

	provider := &fakeProvider{}
	pub := publisher.New(cfg, store, provider, logging.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _ = pub.Sweep(ctx)
	if time.Since(start) > 5*time.Second {
		t.Fatal("settle wait ignored cancellation")
	}
	if provider.publishCount() != 0 {
		t.Fatal("publish should not run after cancellation")
	}
	stored, _ := store.Get(context.Background(), queue.CollectionProcessed, item.ID)
	if stored.Posted || stored.PostError != "" {
		t.Fatalf("interrupted publish should leave the record untouched: %+v", stored)
	}
}

func TestRestoreSeedsQuotaFromTodaysPosts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxPostsPerDay(2))
	store := testsupport.MustOpenStore(t, cfg)
	now := time.Date(2026, 5, 1, 15, 0, 0, 0, time.Local)
	ctx := context.Background()

	for i, postedAt := range []time.Time{now.Add(-time.Hour), now.Add(-30 * time.Hour)} {
		item := testsupport.NewApproved(t, store, fmt.Sprintf("posted %d", i), testsupport.WithImage("https://img/p.png"))
		if _, err := store.Update(ctx, item.ID, queue.CollectionProcessed, queue.MarkPosted("media", postedAt)); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}
	testsupport.NewApproved(t, store, "waiting", testsupport.WithImage("https://img/w.png"))

	provider := &fakeProvider{}
	pub := publisher.New(cfg, store, provider, logging.NewNop(), publisher.WithClock(func() time.Time { return now }))
	n, err := pub.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n != 1 || pub.Quota().Remaining() != 1 {
		t.Fatalf("expected one post today, got n=%d remaining=%d", n, pub.Quota().Remaining())
	}

	result, err := pub.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Published != 1 || pub.Quota().Remaining() != 0 {
		t.Fatalf("unexpected result %+v remaining=%d", result, pub.Quota().Remaining())
	}
}

func TestRequestTimeoutRecordsFailureAndContinues(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stuck := testsupport.NewApproved(t, store, "stuck", testsupport.WithImage("https://img/stuck.png"), testsupport.CreatedAt(time.Now().Add(-time.Hour)))
	next := testsupport.NewApproved(t, store, "next", testsupport.WithImage("https://img/next.png"))

	provider := &stallingProvider{fakeProvider: &fakeProvider{}, stallFor: "https://img/stuck.png"}
	pub := publisher.New(cfg, store, provider, logging.NewNop(), publisher.WithRequestTimeout(20*time.Millisecond))

	done := make(chan struct{})
	var result publisher.SweepResult
	var err error
	go func() {
		defer close(done)
		result, err = pub.Sweep(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not honour the request timeout")
	}
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.Failed != 1 || result.Published != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if pub.Quota().Used() != 1 {
		t.Fatalf("timed out publish must not count against the quota, used=%d", pub.Quota().Used())
	}

	timedOut, err := store.Get(context.Background(), queue.CollectionProcessed, stuck.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if timedOut.Posted || timedOut.PostError == "" || !queue.EligibleForPublish(timedOut) {
		t.Fatalf("expected an eligible record with postError: %+v", timedOut)
	}
	posted, _ := store.Get(context.Background(), queue.CollectionProcessed, next.ID)
	if !posted.Posted {
		t.Fatal("next item should publish in the same sweep")
	}
}

func TestPublishedItemRecordedDespiteShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewApproved(t, store, "last one", testsupport.WithImage("https://img/last.png"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider := &shutdownProvider{fakeProvider: &fakeProvider{}, cancel: cancel}
	_, _ = publisher.New(cfg, store, provider, logging.NewNop()).Sweep(ctx)

	stored, err := store.Get(context.Background(), queue.CollectionProcessed, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !stored.Posted || stored.PostID != "media-container-1" {
		t.Fatalf("live post not recorded after shutdown: %+v", stored)
	}

	restarted := publisher.New(cfg, store, provider.fakeProvider, logging.NewNop())
	if _, err := restarted.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep after restart failed: %v", err)
	}
	if provider.publishCount() != 1 {
		t.Fatalf("item published %d times", provider.publishCount())
	}
}
