package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one unit of integration activity, merged across sources.
type Event struct {
	ID          string
	Integration string
	EventType   string
	Actor       string
	Title       string
	URL         string
	OccurredAt  time.Time
}

// Source fetches events from one integration. Implementations return an
// error for connectivity failures; the aggregator isolates it to that
// branch.
type Source interface {
	Name() string
	Events(ctx context.Context, intent Intent, workspaceID string) ([]Event, error)
}

// Context is the merged result of one aggregation pass.
type Context struct {
	Events      []Event
	TextContext string
	Sources     []string
}

// Aggregator fans out to every configured source and merges the results.
type Aggregator struct {
	sources []Source
	logger  *zap.Logger
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(sources []Source, logger *zap.Logger) (*Aggregator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Aggregator{sources: sources, logger: logger}, nil
}

// Aggregate fetches from all sources in parallel with a settle-all join: a
// source that errors or returns zero events is simply excluded from
// Sources, never aborting its siblings. Events are merged sorted by
// descending occurrence time.
func (a *Aggregator) Aggregate(ctx context.Context, intent Intent, workspaceID string) *Context {
	type outcome struct {
		name   string
		events []Event
		err    error
	}

	outcomes := make([]outcome, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			events, err := src.Events(ctx, intent, workspaceID)
			outcomes[i] = outcome{name: src.Name(), events: events, err: err}
		}(i, src)
	}
	wg.Wait()

	result := &Context{}
	for _, o := range outcomes {
		if o.err != nil {
			a.logger.Warn("source fetch failed, excluding from context",
				zap.String("source", o.name), zap.Error(o.err))
			continue
		}
		if len(o.events) == 0 {
			continue
		}
		result.Events = append(result.Events, o.events...)
		result.Sources = append(result.Sources, o.name)
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		return result.Events[i].OccurredAt.After(result.Events[j].OccurredAt)
	})

	result.TextContext = eventsToText(result.Events)
	return result
}

// eventsToText renders events to the flat line format handed to the model.
func eventsToText(events []Event) string {
	lines := make([]string, len(events))
	for i, e := range events {
		actor := e.Actor
		if actor == "" {
			actor = "unknown"
		}
		lines[i] = fmt.Sprintf("[%s] %s by %s at %s: %s",
			e.Integration, e.EventType, actor,
			e.OccurredAt.Format("1/2/2006, 3:04:05 PM"), e.Title)
	}
	return strings.Join(lines, "\n")
}
