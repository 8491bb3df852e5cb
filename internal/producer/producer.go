// Package producer turns content requests into pending queue items.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"postgate/internal/logging"
	"postgate/internal/queue"
	"postgate/internal/services"
	"postgate/internal/services/textgen"
)

const maxIDAttempts = 5

// Request describes one content request.
type Request struct {
	Type        queue.ContentType
	Description string
	RequestedBy string
	Content     string
	ImagePath   string
}

// Producer validates requests and writes them to the pending collection.
type Producer struct {
	store  queue.Store
	text   services.TextGenerator
	images services.ImageGenerator
	logger *slog.Logger

	captionTokens int
	imageShape    string
	now           func() time.Time
	newID         func() string
}

// Option customizes a Producer.
type Option func(*Producer)

// WithGenerators wires the text and image generators used by Generate.
func WithGenerators(text services.TextGenerator, images services.ImageGenerator) Option {
	return func(p *Producer) {
		if text != nil {
			p.text = text
		}
		if images != nil {
			p.images = images
		}
	}
}

// WithCaptionTokens bounds caption generation output.
func WithCaptionTokens(n int) Option {
	return func(p *Producer) {
		if n > 0 {
			p.captionTokens = n
		}
	}
}

// WithImageShape sets the aspect identifier passed to the image generator.
func WithImageShape(shape string) Option {
	return func(p *Producer) {
		if strings.TrimSpace(shape) != "" {
			p.imageShape = shape
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Producer) { p.now = now }
}

// WithIDSource overrides id generation.
func WithIDSource(newID func() string) Option {
	return func(p *Producer) { p.newID = newID }
}

// New constructs a Producer.
func New(store queue.Store, logger *slog.Logger, opts ...Option) *Producer {
	p := &Producer{
		store:         store,
		text:          services.DisabledText{},
		images:        services.DisabledImages{},
		logger:        logging.NewComponentLogger(logger, "producer"),
		captionTokens: 500,
		imageShape:    "square_1_1",
		now:           time.Now,
		newID:         queue.NewID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit stores req as a new pending item and returns it.
func (p *Producer) Submit(ctx context.Context, req Request) (queue.Item, error) {
	contentType, err := queue.ParseContentType(string(req.Type))
	if err != nil {
		return queue.Item{}, err
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return queue.Item{}, errors.New("description is required")
	}

	item := queue.Item{
		Type:        contentType,
		Description: description,
		Content:     strings.TrimSpace(req.Content),
		ImagePath:   strings.TrimSpace(req.ImagePath),
		Status:      queue.StatusPending,
		CreatedAt:   p.now().UTC(),
		RequestedBy: queue.Requester(strings.TrimSpace(req.RequestedBy)),
	}

	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		item.ID = p.newID()
		err = p.store.Create(ctx, item)
		if err == nil {
			p.logger.Info("item queued for approval",
				logging.String(logging.FieldItemID, item.ID),
				logging.String(logging.FieldEventType, "item_created"),
				logging.String("type", string(item.Type)),
				logging.Bool("has_image", item.HasImage()),
				logging.String("requested_by", string(item.RequestedBy)),
			)
			return item, nil
		}
		var dup *queue.DuplicateIDError
		if !errors.As(err, &dup) {
			return queue.Item{}, err
		}
		p.logger.Debug("id collision, regenerating", logging.String(logging.FieldItemID, item.ID), logging.Int("attempt", attempt))
	}
	return queue.Item{}, fmt.Errorf("allocate item id after %d attempts: %w", maxIDAttempts, err)
}

// Generate produces content for req through the configured generators and
// then submits it. Post requests get a generated caption; post and image
// requests get an image when an image generator is configured. Image failures
// are logged and the item is queued without one.
func (p *Producer) Generate(ctx context.Context, req Request) (queue.Item, error) {
	contentType, err := queue.ParseContentType(string(req.Type))
	if err != nil {
		return queue.Item{}, err
	}
	req.Type = contentType
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return queue.Item{}, errors.New("description is required")
	}

	if contentType == queue.TypePost && strings.TrimSpace(req.Content) == "" {
		caption, err := p.text.Generate(ctx, textgen.CaptionPrompt(description), p.captionTokens)
		if err != nil {
			return queue.Item{}, fmt.Errorf("generate caption: %w", err)
		}
		req.Content = caption
	}

	if strings.TrimSpace(req.ImagePath) == "" {
		url, err := p.images.Generate(ctx, description, p.imageShape)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, p.logger), "image generation failed; queuing without image",
				"image_generation_failed",
				logging.String(logging.FieldErrorHint, "check image.api_key and provider status"),
				logging.String(logging.FieldImpact, "item will be skipped by the publisher until an image is attached"),
				logging.Error(err),
			)
		} else {
			req.ImagePath = url
		}
	}

	return p.Submit(ctx, req)
}
