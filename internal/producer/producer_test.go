package producer_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"postgate/internal/logging"
	"postgate/internal/producer"
	"postgate/internal/queue"
	"postgate/internal/services"
	"postgate/internal/testsupport"
)

type stubText struct {
	reply   string
	err     error
	prompts []string
	tokens  []int
}

func (s *stubText) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	s.prompts = append(s.prompts, prompt)
	s.tokens = append(s.tokens, maxTokens)
	return s.reply, s.err
}

type stubImages struct {
	url    string
	err    error
	shapes []string
}

func (s *stubImages) Generate(_ context.Context, _ string, shape string) (string, error) {
	s.shapes = append(s.shapes, shape)
	return s.url, s.err
}

func TestSubmitCreatesPendingItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := producer.New(store, logging.NewNop(), producer.WithClock(func() time.Time { return fixed }))

	item, err := p.Submit(context.Background(), producer.Request{
		Type:        "post",
		Description: "  morning coffee  ",
		RequestedBy: "1001",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !queue.ValidID(item.ID) || item.Status != queue.StatusPending || item.Description != "morning coffee" {
		t.Fatalf("unexpected item %+v", item)
	}
	if !item.CreatedAt.Equal(fixed) {
		t.Fatalf("expected createdAt %v, got %v", fixed, item.CreatedAt)
	}
	stored, err := store.Get(context.Background(), queue.CollectionPending, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.RequestedBy != "1001" || stored.ProcessedAt != nil {
		t.Fatalf("unexpected stored item %+v", stored)
	}
}

func TestSubmitValidatesRequest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	p := producer.New(store, logging.NewNop())

	if _, err := p.Submit(context.Background(), producer.Request{Type: "video", Description: "x"}); err == nil {
		t.Fatal("expected unknown type to fail")
	}
	if _, err := p.Submit(context.Background(), producer.Request{Type: "post", Description: "   "}); err == nil {
		t.Fatal("expected empty description to fail")
	}
	items, err := store.List(context.Background(), queue.CollectionPending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items written, got %d", len(items))
	}
}

func TestSubmitRegeneratesCollidingID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	existing := testsupport.NewPending(t, store, "first")

	ids := []string{existing.ID, "fresh00000001"}
	p := producer.New(store, logging.NewNop(), producer.WithIDSource(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))
	item, err := p.Submit(context.Background(), producer.Request{Type: "image", Description: "second"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if item.ID != "fresh00000001" {
		t.Fatalf("expected regenerated id, got %s", item.ID)
	}
	original, err := store.Get(context.Background(), queue.CollectionPending, existing.ID)
	if err != nil || original.Description != "first" {
		t.Fatalf("existing record was disturbed: %+v %v", original, err)
	}
}

func TestGeneratePostUsesCaptionAndImage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	text := &stubText{reply: "Rise and grind #coffee"}
	images := &stubImages{url: "https://img.example/coffee.png"}
	p := producer.New(store, logging.NewNop(),
		producer.WithGenerators(text, images),
		producer.WithCaptionTokens(500),
		producer.WithImageShape("square_1_1"),
	)

	item, err := p.Generate(context.Background(), producer.Request{Type: queue.TypePost, Description: "coffee", RequestedBy: "7"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if item.Content != "Rise and grind #coffee" || item.ImagePath != "https://img.example/coffee.png" {
		t.Fatalf("unexpected item %+v", item)
	}
	if len(text.prompts) != 1 || !strings.Contains(text.prompts[0], "Instagram post caption for: coffee") || text.tokens[0] != 500 {
		t.Fatalf("unexpected caption request %v %v", text.prompts, text.tokens)
	}
	if len(images.shapes) != 1 || images.shapes[0] != "square_1_1" {
		t.Fatalf("unexpected image request %v", images.shapes)
	}
}

func TestGenerateImageSkipsCaption(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	text := &stubText{reply: "unused"}
	p := producer.New(store, logging.NewNop(), producer.WithGenerators(text, &stubImages{url: "https://img/x.png"}))

	item, err := p.Generate(context.Background(), producer.Request{Type: queue.TypeImage, Description: "mountains"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(text.prompts) != 0 || item.Content != "" || item.Caption() != "mountains" {
		t.Fatalf("image request should not generate a caption: %+v", item)
	}
}

func TestGenerateImageFailureIsNotFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	p := producer.New(store, logging.NewNop(), producer.WithGenerators(
		&stubText{reply: "caption"},
		&stubImages{err: errors.New("freepik down")},
	))

	item, err := p.Generate(context.Background(), producer.Request{Type: queue.TypePost, Description: "beach"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if item.HasImage() {
		t.Fatalf("expected item without image, got %q", item.ImagePath)
	}
}

func TestGenerateTextFailureSurfaces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provErr := &services.ProviderError{Provider: "anthropic", Op: "messages", StatusCode: 500}
	p := producer.New(store, logging.NewNop(), producer.WithGenerators(&stubText{err: provErr}, nil))

	_, err := p.Generate(context.Background(), producer.Request{Type: queue.TypePost, Description: "beach"})
	var got *services.ProviderError
	if !errors.As(err, &got) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	items, _ := store.List(context.Background(), queue.CollectionPending)
	if len(items) != 0 {
		t.Fatalf("failed generation should not queue an item, got %d", len(items))
	}
}
