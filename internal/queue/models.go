package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status represents the decision state of a queue item.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decided reports whether the status is terminal for the decision step.
func (s Status) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// ContentType identifies what the producer generates for an item.
type ContentType string

const (
	TypePost  ContentType = "post"
	TypeImage ContentType = "image"
)

// ParseContentType normalizes user input into a ContentType.
func ParseContentType(value string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(value))) {
	case TypePost:
		return TypePost, nil
	case TypeImage:
		return TypeImage, nil
	default:
		return "", fmt.Errorf("unknown content type %q (want post or image)", value)
	}
}

// Collection names a storage partition.
type Collection string

const (
	CollectionPending   Collection = "pending"
	CollectionProcessed Collection = "processed"
)

// Valid reports whether c names a known collection.
func (c Collection) Valid() bool {
	return c == CollectionPending || c == CollectionProcessed
}

// ParseCollection normalizes user input into a Collection.
func ParseCollection(value string) (Collection, error) {
	c := Collection(strings.ToLower(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown collection %q (want pending or processed)", value)
	}
	return c, nil
}

// CollectionFor returns the collection an item with the given status belongs to.
func CollectionFor(status Status) Collection {
	if status.Decided() {
		return CollectionProcessed
	}
	return CollectionPending
}

// Requester identifies who asked for an item. Older records store the chat
// user id as a JSON number, so both forms decode.
type Requester string

func (r *Requester) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Requester(s)
		return nil
	}
	if string(data) == "null" {
		*r = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("requestedBy: %w", err)
	}
	*r = Requester(n.String())
	return nil
}

// Item is one unit of content flowing through the approval queue.
type Item struct {
	ID          string      `json:"id"`
	Type        ContentType `json:"type"`
	Description string      `json:"description"`
	Content     string      `json:"content,omitempty"`
	ImagePath   string      `json:"imagePath,omitempty"`
	Status      Status      `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
	RequestedBy Requester   `json:"requestedBy"`
	ProcessedAt *time.Time  `json:"processedAt,omitempty"`
	Posted      bool        `json:"posted,omitempty"`
	PostedAt    *time.Time  `json:"postedAt,omitempty"`
	PostError   string      `json:"postError,omitempty"`
	PostID      string      `json:"postId,omitempty"`
}

// Caption returns the text to publish with the item.
func (i Item) Caption() string {
	if strings.TrimSpace(i.Content) != "" {
		return i.Content
	}
	return i.Description
}

// HasImage reports whether the item carries an image reference.
func (i Item) HasImage() bool {
	return strings.TrimSpace(i.ImagePath) != ""
}

// Clone returns a deep copy so mutators cannot alias stored timestamps.
func (i Item) Clone() Item {
	out := i
	if i.ProcessedAt != nil {
		t := *i.ProcessedAt
		out.ProcessedAt = &t
	}
	if i.PostedAt != nil {
		t := *i.PostedAt
		out.PostedAt = &t
	}
	return out
}

// Encode renders the item as the persisted document (two-space indent).
func (i Item) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode item %s: %w", i.ID, err)
	}
	return append(data, '\n'), nil
}

// Decode parses a persisted document.
func Decode(data []byte) (Item, error) {
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return Item{}, err
	}
	if strings.TrimSpace(item.ID) == "" {
		return Item{}, fmt.Errorf("record has no id")
	}
	return item, nil
}

// Stats counts items per decision status.
type Stats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// Count tallies items by status. Callers pass deduplicated items.
func Count(items []Item) Stats {
	var stats Stats
	for _, item := range items {
		switch item.Status {
		case StatusPending:
			stats.Pending++
		case StatusApproved:
			stats.Approved++
		case StatusRejected:
			stats.Rejected++
		}
	}
	return stats
}
