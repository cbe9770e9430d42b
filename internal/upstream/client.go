// Package upstream is the Upstream GraphQL Client (C5): a rate-limited,
// paginating fetcher that turns the bracket provider's GraphQL schema into a
// domain.Tournament. It never touches the cache — Client.Fetch always goes
// to the network, and it is the router's job to decide when that is needed.
package upstream

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Borislavv/bracket-bff/internal/domain"
	"github.com/Borislavv/bracket-bff/internal/shared/rate"
)

// Config carries the subset of the process configuration Client needs to
// build its executor and dispatch queue.
type Config struct {
	Endpoint       string
	Token          string
	MinInterval    time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	PageSize       int
	PageLimit      int
}

// Progress is delivered as a tournament fetch makes headway, so a caller
// (the router, ultimately an SSE or logging layer) can report partial state
// without waiting for the whole fetch to finish. Callbacks must return
// quickly and never panic — Client recovers a panicking callback into a
// logged warning so one bad observer can't take down a fetch.
type Progress struct {
	EventName   string
	BracketName string
	Done        bool
}

// ProgressFunc receives Progress notifications. It runs on the fetch's own
// goroutine and must not block.
type ProgressFunc func(Progress)

// Client fetches and assembles a full Tournament from upstream, paced by a
// single dispatch queue shared across every call the process makes.
type Client struct {
	exec      *executor
	queue     *dispatchQueue
	pageSize  int
	pageLimit int
	logger    zerolog.Logger
}

// New builds a Client bound to cfg. ctx controls the lifetime of the
// background dispatch worker; canceling it stops accepting new work.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) *Client {
	exec := newExecutor(cfg.Endpoint, cfg.Token, cfg.MaxRetries, cfg.RetryBaseDelay, logger)
	jitter := rate.NewJitterFromInterval(ctx, cfg.MinInterval)
	queue := newDispatchQueue(ctx, jitter)

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 30
	}
	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = 10
	}

	return &Client{exec: exec, queue: queue, pageSize: pageSize, pageLimit: pageLimit, logger: logger}
}

// paced runs fn through the shared dispatch queue, so every upstream call —
// regardless of which stage of assembly issued it — obeys one rate budget.
func (c *Client) paced(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := c.queue.submit(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// Fetch retrieves the tournament identified by slug and assembles it into a
// domain.Tournament. Individual event or phase-group failures are logged
// and skipped rather than aborting the whole fetch — a caller gets whatever
// could be assembled, never an all-or-nothing result for a single bad
// event among many good ones.
func (c *Client) Fetch(ctx context.Context, slug string, onProgress ProgressFunc) (*domain.Tournament, error) {
	var top tournamentAndEventsData
	err := c.paced(ctx, func(ctx context.Context) error {
		return c.exec.fetchInto(ctx, tournamentQuery, map[string]any{"slug": slug}, &top)
	})
	if err != nil {
		return nil, err
	}
	if top.Tournament == nil {
		return nil, newError(KindNotFound, "tournament not found: "+slug, nil)
	}

	raw := top.Tournament
	t := &domain.Tournament{
		ID:   raw.ID.String(),
		Name: raw.Name,
		Slug: raw.Slug,
		URL:  raw.URL,
	}

	for _, revent := range raw.Events {
		ev := domain.Event{ID: revent.ID.String(), Name: revent.Name, Slug: revent.Slug}
		c.fetchEvent(ctx, revent.ID.String(), &ev, onProgress)
		t.Events = append(t.Events, ev)
	}

	notify(onProgress, Progress{Done: true}, c.logger)
	return t, nil
}

// fetchEvent assembles one event's brackets. A failure fetching this
// event's phase groups is logged and leaves the event with no brackets
// rather than failing the whole tournament.
func (c *Client) fetchEvent(ctx context.Context, eventID string, ev *domain.Event, onProgress ProgressFunc) {
	var pg phaseGroupsData
	err := c.paced(ctx, func(ctx context.Context) error {
		return c.exec.fetchInto(ctx, phaseGroupsQuery, map[string]any{"eventId": eventID}, &pg)
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("event", ev.Name).Msg("failed to fetch phase groups, skipping event")
		return
	}
	if pg.Event == nil {
		return
	}

	for _, group := range pg.Event.PhaseGroups {
		bracketName := group.DisplayIdentifier
		if group.Phase != nil && group.Phase.Name != "" {
			bracketName = group.Phase.Name + " - " + bracketName
		}
		c.fetchBracket(ctx, group.ID.String(), bracketName, ev)
		notify(onProgress, Progress{EventName: ev.Name, BracketName: bracketName}, c.logger)
	}
}

// fetchBracket pages through a phase group's sets until a short page ends
// pagination, or a page fails — a failure halts only this phase group's
// remaining pages, not its already-installed matches nor sibling brackets.
func (c *Client) fetchBracket(ctx context.Context, phaseGroupID, bracketName string, ev *domain.Event) {
	for page := 1; page <= c.pageLimit; page++ {
		var sp setsPageData
		err := c.paced(ctx, func(ctx context.Context) error {
			return c.exec.fetchInto(ctx, setsPageQuery, map[string]any{
				"phaseGroupId": phaseGroupID,
				"page":         page,
				"perPage":      c.pageSize,
			}, &sp)
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("bracket", bracketName).Int("page", page).Msg("failed to fetch sets page, stopping pagination for this bracket")
			return
		}
		if sp.PhaseGroup == nil {
			return
		}

		nodes := sp.PhaseGroup.Sets.Nodes
		for _, set := range nodes {
			installMatch(ev, phaseGroupID, bracketName, buildMatch(set, bracketName))
		}

		if len(nodes) < c.pageSize {
			return
		}
	}
}

// notify invokes onProgress, if set, recovering any panic into a warning
// log so a misbehaving observer never disrupts the fetch it's watching.
func notify(onProgress ProgressFunc, p Progress, logger zerolog.Logger) {
	if onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Interface("recovered", r).Msg("progress callback panicked")
		}
	}()
	onProgress(p)
}
