package queue

import (
	"fmt"
	"strings"
	"time"
)

// Decision is an operator verdict on a pending item.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision accepts "approve"/"approved" and "reject"/"rejected".
func ParseDecision(value string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "approve", "approved":
		return DecisionApprove, nil
	case "reject", "rejected":
		return DecisionReject, nil
	default:
		return "", fmt.Errorf("unknown decision %q (want approve or reject)", value)
	}
}

// Status returns the status the decision moves an item to.
func (d Decision) Status() Status {
	if d == DecisionApprove {
		return StatusApproved
	}
	return StatusRejected
}

// Mutator transforms a record inside Move or Update. Returning an error aborts
// the operation without writing.
type Mutator func(*Item) error

// ApplyDecision stamps a pending item with the decision outcome.
func ApplyDecision(decision Decision, now time.Time) Mutator {
	return func(item *Item) error {
		target := decision.Status()
		if item.Status != StatusPending {
			return &InvalidTransitionError{ID: item.ID, From: item.Status, To: target}
		}
		stamp := now.UTC()
		item.Status = target
		item.ProcessedAt = &stamp
		return nil
	}
}

// MarkPosted records a successful publish. Only approved, unposted items
// qualify.
func MarkPosted(postID string, now time.Time) Mutator {
	return func(item *Item) error {
		if item.Status != StatusApproved {
			return &InvalidTransitionError{ID: item.ID, From: item.Status, To: "posted"}
		}
		if item.Posted {
			return &InvalidTransitionError{ID: item.ID, From: "posted", To: "posted"}
		}
		stamp := now.UTC()
		item.Posted = true
		item.PostedAt = &stamp
		item.PostID = postID
		item.PostError = ""
		return nil
	}
}

// MarkPostFailed annotates a failed publish attempt. The item keeps its status
// and stays eligible for the next sweep.
func MarkPostFailed(message string) Mutator {
	return func(item *Item) error {
		if item.Status != StatusApproved || item.Posted {
			return &InvalidTransitionError{ID: item.ID, From: item.Status, To: "post_failed"}
		}
		item.PostError = message
		return nil
	}
}

// EligibleForPublish reports whether the publisher should consider item.
func EligibleForPublish(item Item) bool {
	return item.Status == StatusApproved && !item.Posted
}
