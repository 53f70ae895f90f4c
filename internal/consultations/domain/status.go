// Package domain holds the consultation lifecycle rules. Every function here
// is pure: it receives a record, validates the caller and the current status,
// and returns the next record plus the side effects the commit should trigger.
package domain

import (
	"fmt"
	"strings"
)

// Status is the lifecycle position of a consultation.
type Status string

const (
	StatusPending         Status = "Pending"
	StatusAccepted        Status = "Accepted"
	StatusAwaitingPayment Status = "AwaitingPayment"
	StatusInProgress      Status = "InProgress"
	StatusCompleted       Status = "Completed"
	StatusCancelled       Status = "Cancelled"
)

var allStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusAwaitingPayment,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
}

// transitions is the directed lifecycle graph. Cancellation is reachable
// from every non-terminal status.
var transitions = map[Status][]Status{
	StatusPending:         {StatusAccepted, StatusCancelled},
	StatusAccepted:        {StatusAwaitingPayment, StatusCompleted, StatusCancelled},
	StatusAwaitingPayment: {StatusInProgress, StatusPending, StatusCancelled},
	StatusInProgress:      {StatusCompleted, StatusCancelled},
}

// ParseStatus maps a stored or user supplied value onto the canonical status,
// ignoring case and surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range allStatuses {
		if strings.EqualFold(trimmed, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown consultation status %q", raw)
}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether no operation may change a record in this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether the graph has an edge from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
