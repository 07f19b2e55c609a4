// workers/sync_runner.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"partnership-sync/config"
	"partnership-sync/logger"
	"partnership-sync/services"

	"github.com/google/uuid"
)

// RunState is the coordinator's position in one sync run.
type RunState string

const (
	StateIdle                 RunState = "idle"
	StateFetching             RunState = "fetching"
	StateNormalizing          RunState = "normalizing"
	StateUpserting            RunState = "upserting"
	StateDecidingContinuation RunState = "deciding_continuation"
	StateDone                 RunState = "done"
	StateFailed               RunState = "failed"
)

// StopReason records which continuation rule ended the run.
type StopReason string

const (
	StopEmptyPage  StopReason = "empty_page"
	StopShortPage  StopReason = "short_page"
	StopTotalPages StopReason = "total_pages_reached"
	StopTotalCount StopReason = "total_count_reached"
	StopSafetyCap  StopReason = "safety_cap"
)

// Run status values returned to the trigger caller.
const (
	StatusSuccess       = "success"
	StatusSyncCompleted = "sync_completed"
	StatusPartialError  = "partial_error"
	StatusError         = "error"
)

const (
	// MaxSampleErrors bounds the per-record error messages kept per run.
	MaxSampleErrors = 10
	// IncrementalOverlap re-reads the last day already stored so records on
	// the window boundary are re-upserted instead of missed.
	IncrementalOverlap = 24 * time.Hour
	// DefaultMaxPages is the safety cap when none is configured.
	DefaultMaxPages = 1000
)

// Endpoint describes where and how an entity is listed on the marketplace.
type Endpoint struct {
	Path       string
	Method     string
	Order      string
	Sort       string
	StartField string
	EndField   string
}

// Target binds one entity's normalization and storage to the run loop.
type Target[T any] interface {
	Entity() string
	Endpoint() Endpoint
	Normalize(raw json.RawMessage) (T, error)
	Identifier(rec T) string
	// Upsert returns non-fatal warnings (failed line items, related writes)
	// separately from the record's own failure.
	Upsert(ctx context.Context, rec T) ([]error, error)
	LatestCreatedAt(ctx context.Context) (*time.Time, error)
}

// RunOptions come from the trigger request.
type RunOptions struct {
	Incremental bool
	StartDate   *time.Time
	EndDate     *time.Time
	Page        int // first page to request, 1-based
	Limit       int
	Filter      map[string]any
	Status      string
}

// RunSummary is the outcome of one run.
type RunSummary struct {
	RunID           string     `json:"run_id"`
	Entity          string     `json:"entity"`
	Status          string     `json:"status"`
	State           RunState   `json:"state"`
	Mode            string     `json:"mode"`
	WindowStart     string     `json:"window_start,omitempty"`
	WindowEnd       string     `json:"window_end,omitempty"`
	TotalProcessed  int        `json:"total_processed"`
	SuccessCount    int        `json:"success_count"`
	ErrorCount      int        `json:"error_count"`
	DuplicateCount  int        `json:"duplicate_count"`
	ChildErrorCount int        `json:"child_error_count"`
	PagesFetched    int        `json:"pages_fetched"`
	StopReason      StopReason `json:"stop_reason,omitempty"`
	SampleErrors    []string   `json:"sample_errors,omitempty"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
}

func (s *RunSummary) sample(err error) {
	if len(s.SampleErrors) < MaxSampleErrors {
		s.SampleErrors = append(s.SampleErrors, err.Error())
	}
}

func (s *RunSummary) recordError(err error) {
	s.ErrorCount++
	s.sample(err)
}

// Runner drives page-by-page runs. Pages are processed strictly in order:
// the decision to fetch page N+1 depends on page N.
type Runner struct {
	Source    PageFetcher
	Archive   PageArchiver // optional
	PageSize  int
	MaxPages  int // <= 0 means DefaultMaxPages
	FullStart time.Time
	Now       func() time.Time
}

func (r *Runner) maxPages() int {
	if r.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return r.MaxPages
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Window computes the fetch window. Incremental runs start one overlap
// margin before the newest stored created_at and end now; full runs use the
// caller's bounds or [FullStart, now].
func (r *Runner) Window(ctx context.Context, latest func(context.Context) (*time.Time, error), opts RunOptions) (time.Time, time.Time, error) {
	now := r.now()
	if opts.Incremental {
		newest, err := latest(ctx)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if newest == nil {
			return r.FullStart, now, nil
		}
		return newest.UTC().Add(-IncrementalOverlap), now, nil
	}

	start, end := r.FullStart, now
	if opts.StartDate != nil {
		start = *opts.StartDate
	}
	if opts.EndDate != nil {
		end = *opts.EndDate
	}
	return start, end, nil
}

// Run executes one sync run for target. Per-record failures are counted and
// sampled; only source failures (or failing to compute the window) end the
// run in StateFailed, and the summary then carries the counts so far. Pages
// already upserted are never rolled back.
func Run[T any](ctx context.Context, r *Runner, target Target[T], opts RunOptions) (*RunSummary, error) {
	runID := uuid.NewString()
	log := logger.WithFields(logger.FromContext(ctx), map[string]interface{}{
		"run_id": runID,
		"entity": target.Entity(),
	})
	ctx = logger.WithContext(ctx, log)

	summary := &RunSummary{
		RunID:     runID,
		Entity:    target.Entity(),
		State:     StateIdle,
		Mode:      "full",
		StartedAt: r.now(),
	}
	if opts.Incremental {
		summary.Mode = "incremental"
	}

	fail := func(err error) (*RunSummary, error) {
		summary.State = StateFailed
		summary.Status = StatusError
		summary.Error = err.Error()
		summary.FinishedAt = r.now()
		log.Error().Err(err).
			Int("pages_fetched", summary.PagesFetched).
			Int("total_processed", summary.TotalProcessed).
			Msg("sync run failed")
		return summary, err
	}

	start, end, err := r.Window(ctx, target.LatestCreatedAt, opts)
	if err != nil {
		return fail(fmt.Errorf("compute sync window: %w", err))
	}
	summary.WindowStart = start.Format(time.DateOnly)
	summary.WindowEnd = end.Format(time.DateOnly)

	ep := target.Endpoint()
	filter := make(map[string]any, len(opts.Filter)+3)
	for k, v := range opts.Filter {
		filter[k] = v
	}
	filter[fieldOr(ep.StartField, "start_date")] = summary.WindowStart
	filter[fieldOr(ep.EndField, "end_date")] = summary.WindowEnd
	if opts.Status != "" {
		filter["status"] = opts.Status
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = r.PageSize
	}
	limit = config.ClampPageSize(limit)

	page := opts.Page
	if page < 1 {
		page = 1
	}

	log.Info().
		Str("mode", summary.Mode).
		Str("window_start", summary.WindowStart).
		Str("window_end", summary.WindowEnd).
		Int("start_page", page).
		Int("limit", limit).
		Msg("sync run started")

	seen := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return fail(fmt.Errorf("run cancelled before page %d: %w", page, err))
		}

		summary.State = StateFetching
		resp, err := r.Source.FetchPage(ctx, services.PageRequest{
			Endpoint: ep.Path,
			Method:   ep.Method,
			Page:     page,
			Limit:    limit,
			Order:    ep.Order,
			Sort:     ep.Sort,
			Filter:   filter,
		})
		if err != nil {
			return fail(err)
		}
		summary.PagesFetched++

		if r.Archive != nil && len(resp.Raw) > 0 {
			if err := r.Archive.ArchivePage(ctx, target.Entity(), runID, page, resp.Raw); err != nil {
				log.Warn().Err(err).Int("page", page).Msg("raw page archive failed")
			}
		}

		for _, raw := range resp.Records {
			summary.TotalProcessed++

			summary.State = StateNormalizing
			rec, err := target.Normalize(raw)
			if err != nil {
				summary.recordError(err)
				log.Warn().Err(err).Int("page", page).Msg("record rejected by normalizer")
				continue
			}

			id := target.Identifier(rec)
			if _, dup := seen[id]; dup {
				summary.DuplicateCount++
				log.Debug().Err(&services.DuplicateInRunError{Entity: target.Entity(), GUID: id}).Int("page", page).Msg("duplicate skipped")
				continue
			}
			seen[id] = struct{}{}

			summary.State = StateUpserting
			warnings, err := target.Upsert(ctx, rec)
			for _, w := range warnings {
				summary.ChildErrorCount++
				summary.sample(w)
			}
			if err != nil {
				summary.recordError(err)
				log.Warn().Err(err).Str("guid", id).Int("page", page).Msg("record upsert failed")
				continue
			}
			summary.SuccessCount++
		}

		summary.State = StateDecidingContinuation
		if reason, stop := r.shouldStop(resp, page, limit, summary.PagesFetched); stop {
			summary.StopReason = reason
			break
		}
		page++
	}

	summary.State = StateDone
	summary.Status = StatusSuccess
	if summary.ErrorCount > 0 || summary.ChildErrorCount > 0 {
		summary.Status = StatusPartialError
	}
	summary.FinishedAt = r.now()

	log.Info().
		Str("status", summary.Status).
		Str("stop_reason", string(summary.StopReason)).
		Int("pages_fetched", summary.PagesFetched).
		Int("total_processed", summary.TotalProcessed).
		Int("success_count", summary.SuccessCount).
		Int("error_count", summary.ErrorCount).
		Int("duplicate_count", summary.DuplicateCount).
		Int("child_error_count", summary.ChildErrorCount).
		Dur("duration", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("sync run completed")
	return summary, nil
}

// shouldStop applies the continuation policy; any one rule is enough.
func (r *Runner) shouldStop(p *services.Page, page, limit, fetched int) (StopReason, bool) {
	switch {
	case len(p.Records) == 0:
		return StopEmptyPage, true
	case len(p.Records) < limit:
		return StopShortPage, true
	case p.TotalPages != nil && page >= *p.TotalPages:
		return StopTotalPages, true
	case p.TotalCount != nil && page*limit >= *p.TotalCount:
		return StopTotalCount, true
	case fetched >= r.maxPages():
		return StopSafetyCap, true
	}
	return "", false
}

func fieldOr(field, def string) string {
	if field == "" {
		return def
	}
	return field
}

// IsSourceFailure reports whether err came from the marketplace rather than
// local storage.
func IsSourceFailure(err error) bool {
	var sfe *services.SourceFetchError
	return errors.As(err, &sfe)
}
