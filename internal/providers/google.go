package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/evidence"
)

const fetchTimeout = 10 * time.Second

// GmailFetcher wraps the internal gmail agent endpoint. The endpoint owns
// OAuth token refresh; this wrapper only speaks provider-shaped JSON.
type GmailFetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGmailFetcher creates a fetcher against the given agent endpoint URL.
func NewGmailFetcher(baseURL string, logger *zap.Logger) (*GmailFetcher, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gmail endpoint URL required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &GmailFetcher{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}, nil
}

type gmailPayload struct {
	Connected bool `json:"connected"`
	Messages  []struct {
		ID      string `json:"id"`
		From    string `json:"from"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
		Snippet string `json:"snippet"`
		TimeAgo string `json:"timeAgo"`
	} `json:"messages"`
}

// FetchEmail fetches recent messages. A 401 surfaces as AuthError; any other
// failure yields an empty, disconnected result.
func (f *GmailFetcher) FetchEmail(ctx context.Context, userID string) evidence.EmailResult {
	var payload gmailPayload
	status, err := fetchJSON(ctx, f.httpClient,
		fmt.Sprintf("%s?user_id=%s&limit=15&full=true", f.baseURL, userID), &payload)
	if err != nil {
		f.logger.Warn("gmail fetch failed", zap.Error(err))
		return evidence.EmailResult{}
	}
	if status == http.StatusUnauthorized {
		return evidence.EmailResult{AuthError: true}
	}
	if status != http.StatusOK {
		f.logger.Warn("gmail fetch returned non-OK status", zap.Int("status", status))
		return evidence.EmailResult{}
	}

	result := evidence.EmailResult{Connected: payload.Connected}
	for _, m := range payload.Messages {
		result.Messages = append(result.Messages, evidence.EmailMessage{
			ID:      m.ID,
			From:    m.From,
			Subject: m.Subject,
			Body:    m.Body,
			Snippet: m.Snippet,
			TimeAgo: m.TimeAgo,
		})
	}
	return result
}

// CalendarFetcher wraps the internal calendar agent endpoint.
type CalendarFetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCalendarFetcher creates a fetcher against the given agent endpoint URL.
func NewCalendarFetcher(baseURL string, logger *zap.Logger) (*CalendarFetcher, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("calendar endpoint URL required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &CalendarFetcher{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}, nil
}

type calendarPayload struct {
	Connected bool `json:"connected"`
	Events    []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Start       string `json:"start"`
		Location    string `json:"location"`
		Description string `json:"description"`
	} `json:"events"`
}

// FetchCalendar fetches this week's events. A 401 surfaces as AuthError.
func (f *CalendarFetcher) FetchCalendar(ctx context.Context, userID string) evidence.CalendarResult {
	var payload calendarPayload
	status, err := fetchJSON(ctx, f.httpClient,
		fmt.Sprintf("%s?user_id=%s&timeframe=week", f.baseURL, userID), &payload)
	if err != nil {
		f.logger.Warn("calendar fetch failed", zap.Error(err))
		return evidence.CalendarResult{}
	}
	if status == http.StatusUnauthorized {
		return evidence.CalendarResult{AuthError: true}
	}
	if status != http.StatusOK {
		f.logger.Warn("calendar fetch returned non-OK status", zap.Int("status", status))
		return evidence.CalendarResult{}
	}

	result := evidence.CalendarResult{Connected: payload.Connected}
	for _, e := range payload.Events {
		result.Events = append(result.Events, evidence.CalendarEvent{
			ID:          e.ID,
			Title:       e.Title,
			Start:       e.Start,
			Location:    e.Location,
			Description: e.Description,
		})
	}
	return result
}

// fetchJSON issues one GET and decodes the body on 200. Non-200 statuses
// are returned to the caller undecoded.
func fetchJSON(ctx context.Context, client *http.Client, url string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
