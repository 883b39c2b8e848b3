package providers

import (
	"context"

	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

// Disconnected fetchers stand in for providers the operator has not
// configured. They contribute empty, disconnected results so the pipeline
// shape stays the same whether or not a provider is wired.

// DisconnectedEmail is an EmailFetcher with no upstream.
type DisconnectedEmail struct{}

// FetchEmail returns an empty, disconnected result.
func (DisconnectedEmail) FetchEmail(ctx context.Context, userID string) evidence.EmailResult {
	return evidence.EmailResult{}
}

// DisconnectedCalendar is a CalendarFetcher with no upstream.
type DisconnectedCalendar struct{}

// FetchCalendar returns an empty, disconnected result.
func (DisconnectedCalendar) FetchCalendar(ctx context.Context, userID string) evidence.CalendarResult {
	return evidence.CalendarResult{}
}

// DisconnectedCode is a CodeFetcher with no upstream.
type DisconnectedCode struct{}

// FetchCode returns an empty, disconnected result.
func (DisconnectedCode) FetchCode(ctx context.Context, userID string) evidence.CodeResult {
	return evidence.CodeResult{}
}
