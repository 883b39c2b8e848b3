package query

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPSource adapts one integration's event endpoint to the Source
// interface. Slack, Teams, Notion, Gmail, Calendar, and Linear all speak
// the same event-list JSON shape through their agent endpoints.
type HTTPSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates a source for the named integration.
func NewHTTPSource(name, baseURL string) (*HTTPSource, error) {
	if name == "" || baseURL == "" {
		return nil, fmt.Errorf("source name and URL are required")
	}
	return &HTTPSource{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Name returns the integration name used in rendered context lines.
func (s *HTTPSource) Name() string {
	return s.name
}

type eventPayload struct {
	Events []struct {
		ID         string    `json:"id"`
		EventType  string    `json:"event_type"`
		Actor      string    `json:"actor"`
		Title      string    `json:"title"`
		URL        string    `json:"url"`
		OccurredAt time.Time `json:"occurred_at"`
	} `json:"events"`
}

// Events fetches recent events for the workspace.
func (s *HTTPSource) Events(ctx context.Context, intent Intent, workspaceID string) ([]Event, error) {
	url := fmt.Sprintf("%s?workspace_id=%s", s.baseURL, workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s fetch failed: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
	}

	var payload eventPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s events: %w", s.name, err)
	}

	events := make([]Event, 0, len(payload.Events))
	for _, e := range payload.Events {
		events = append(events, Event{
			ID:          e.ID,
			Integration: s.name,
			EventType:   e.EventType,
			Actor:       e.Actor,
			Title:       e.Title,
			URL:         e.URL,
			OccurredAt:  e.OccurredAt,
		})
	}
	return events, nil
}
