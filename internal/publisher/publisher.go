package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"postgate/internal/config"
	"postgate/internal/logging"
	"postgate/internal/notifications"
	"postgate/internal/queue"
	"postgate/internal/services"
)

const recordTimeout = 10 * time.Second

// Provider publishes an image with a caption in two steps.
type Provider interface {
	CreateContainer(ctx context.Context, imageURL, caption string) (string, error)
	Publish(ctx context.Context, containerID string) (string, error)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Considered     int
	Published      int
	Failed         int
	Skipped        int
	QuotaExhausted bool
}

// Publisher owns the quota and runs sweeps.
type Publisher struct {
	store    queue.Store
	provider Provider
	quota    *Quota
	notifier notifications.Service
	logger   *slog.Logger

	settle  time.Duration
	timeout time.Duration
	now     func() time.Time
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithNotifier reports outcomes to the operator.
func WithNotifier(n notifications.Service) Option {
	return func(p *Publisher) {
		if n != nil {
			p.notifier = n
		}
	}
}

// WithClock overrides the time source for the quota and posted stamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// WithRequestTimeout overrides publisher.request_timeout for one publish attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(p *Publisher) { p.timeout = d }
}

// New constructs a Publisher from configuration.
func New(cfg *config.Config, store queue.Store, provider Provider, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		store:    store,
		provider: provider,
		notifier: notifications.NewService(nil, nil),
		logger:   logging.NewComponentLogger(logger, "publisher"),
		settle:   cfg.SettleDelay(),
		timeout:  cfg.PublishTimeout(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.quota = NewQuota(cfg.Publisher.MaxPostsPerDay, p.now)
	return p
}

// Quota exposes the daily counter.
func (p *Publisher) Quota() *Quota { return p.quota }

// Restore seeds the quota with items already posted today so a restart
// does not grant a fresh allowance.
func (p *Publisher) Restore(ctx context.Context) (int, error) {
	items, err := p.store.List(ctx, queue.CollectionProcessed)
	if err != nil {
		return 0, fmt.Errorf("list processed: %w", err)
	}
	n := 0
	for _, item := range items {
		if item.Posted && item.PostedAt != nil && p.quota.Today(*item.PostedAt) {
			n++
		}
	}
	p.quota.Seed(n)
	return n, nil
}

// Sweep publishes eligible items until the quota is exhausted. Per-item
// failures are recorded on the item and do not abort the sweep; an
// enumeration failure does.
func (p *Publisher) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if p.quota.Exhausted() {
		result.QuotaExhausted = true
		p.logger.Info("daily limit reached, skipping sweep", logging.Int("limit", p.quota.Limit()))
		return result, nil
	}

	started := time.Now()
	items, err := p.store.List(ctx, queue.CollectionProcessed)
	if err != nil {
		logging.ErrorWithContext(p.logger, "list processed items", "sweep_enumeration_failed",
			logging.String(logging.FieldErrorHint, "check queue directory permissions"),
			logging.Error(err),
		)
		return result, fmt.Errorf("list processed: %w", err)
	}

	eligible := items[:0]
	for _, item := range items {
		if queue.EligibleForPublish(item) {
			eligible = append(eligible, item)
		}
	}
	queue.SortOldest(eligible)

	for _, candidate := range eligible {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if p.quota.Exhausted() {
			result.QuotaExhausted = true
			p.logger.Info("daily limit reached", logging.Int("limit", p.quota.Limit()))
			_ = p.notifier.NotifyQuotaReached(ctx, p.quota.Limit())
			break
		}
		result.Considered++
		p.publishItem(ctx, candidate.ID, &result)
	}

	if result.Published > 0 || result.Failed > 0 {
		p.logger.Info("sweep complete",
			logging.Int("published", result.Published),
			logging.Int("failed", result.Failed),
			logging.Int("skipped", result.Skipped),
			logging.Int("posts_today", p.quota.Used()),
		)
		_ = p.notifier.NotifySweepCompleted(ctx, result.Published, result.Failed, time.Since(started))
	}
	return result, nil
}

func (p *Publisher) publishItem(ctx context.Context, id string, result *SweepResult) {
	logger := p.logger.With(logging.String(logging.FieldItemID, id))

	item, err := p.store.Get(ctx, queue.CollectionProcessed, id)
	if err != nil {
		logger.Warn("item vanished before publish", logging.Error(err))
		result.Skipped++
		return
	}
	if !queue.EligibleForPublish(item) {
		logger.Debug("item no longer eligible")
		result.Skipped++
		return
	}
	if !item.HasImage() {
		logging.WarnWithContext(logger, "no image for item", "publish_skipped_no_image",
			logging.String(logging.FieldErrorHint, "attach an image to the item"),
			logging.String(logging.FieldImpact, "item stays approved and is retried next sweep"),
		)
		result.Skipped++
		return
	}

	postID, err := p.publish(ctx, item)
	if err != nil && ctx.Err() != nil {
		logger.Info("publish interrupted by shutdown", logging.Error(err))
		return
	}
	if err != nil {
		result.Failed++
		logging.ErrorWithContext(logger, "publish failed", "publish_failed",
			logging.String(logging.FieldErrorKind, queue.KindOf(err)),
			logging.String(logging.FieldErrorHint, "check instagram credentials and image url"),
			logging.Error(err),
		)
		recordCtx, cancel := outcomeContext(ctx)
		defer cancel()
		if _, updErr := p.store.Update(recordCtx, id, queue.CollectionProcessed, queue.MarkPostFailed(err.Error())); updErr != nil {
			logger.Error("record publish failure", logging.Error(updErr))
		}
		_ = p.notifier.NotifyPublishFailed(recordCtx, item, err)
		return
	}

	// The post is live; the outcome must be recorded even if shutdown has begun.
	recordCtx, cancel := outcomeContext(ctx)
	defer cancel()
	p.quota.Record()
	result.Published++
	posted, err := p.store.Update(recordCtx, id, queue.CollectionProcessed, queue.MarkPosted(postID, p.now()))
	if err != nil {
		logging.ErrorWithContext(logger, "published but could not mark item posted", "publish_record_failed",
			logging.String("post_id", postID),
			logging.String(logging.FieldErrorHint, "set posted=true on the record manually to avoid a repost"),
			logging.Error(err),
		)
		posted = item
		posted.PostID = postID
	}
	logger.Info("posted", logging.String("post_id", postID), logging.Int("posts_today", p.quota.Used()))
	_ = p.notifier.NotifyPublished(recordCtx, posted)
}

// outcomeContext detaches from the sweep's cancellation, bounded by recordTimeout.
func outcomeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}

// publish runs the container/settle/publish flow under the request timeout.
func (p *Publisher) publish(ctx context.Context, item queue.Item) (string, error) {
	if p.provider == nil {
		return "", &services.ConfigurationError{Setting: "instagram", Reason: "publisher has no provider"}
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	containerID, err := p.provider.CreateContainer(ctx, item.ImagePath, item.Caption())
	if err != nil {
		return "", err
	}
	p.logger.Debug("container created", logging.String(logging.FieldItemID, item.ID), logging.String("container_id", containerID))

	if err := wait(ctx, p.settle); err != nil {
		return "", fmt.Errorf("settle wait: %w", err)
	}
	postID, err := p.provider.Publish(ctx, containerID)
	if err != nil {
		return "", err
	}
	if postID == "" {
		return "", errors.New("provider returned empty post id")
	}
	return postID, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
