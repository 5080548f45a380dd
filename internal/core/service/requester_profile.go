package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
	"github.com/birimbahub/marketplace/internal/metrics"
)

// RequesterProfileFetcher resolves another user's profile through the
// server-evaluated visibility policy. It never computes phone visibility
// itself.
type RequesterProfileFetcher struct {
	repo ports.ProfileRepository
	log  zerolog.Logger
}

func NewRequesterProfileFetcher(repo ports.ProfileRepository, log zerolog.Logger) *RequesterProfileFetcher {
	return &RequesterProfileFetcher{repo: repo, log: log}
}

// Fetch returns the requester view of targetUserID. A blank target returns
// nil without calling the backend. Zero rows return nil; backend errors are
// returned as *domain.RequesterLookupError and never replaced by nil.
func (f *RequesterProfileFetcher) Fetch(ctx context.Context, targetUserID string) (*domain.RequesterProfile, error) {
	target := strings.TrimSpace(targetUserID)
	if target == "" {
		metrics.RequesterLookupsTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	start := time.Now()
	rows, err := f.repo.ProfileForRequester(ctx, target)
	metrics.RequesterLookupDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RequesterLookupsTotal.WithLabelValues("error").Inc()
		f.log.Warn().Err(err).Str("target_user_id", target).Msg("requester profile lookup failed")
		return nil, &domain.RequesterLookupError{TargetUserID: target, Err: err}
	}
	if len(rows) == 0 {
		metrics.RequesterLookupsTotal.WithLabelValues("not_found").Inc()
		return nil, nil
	}

	metrics.RequesterLookupsTotal.WithLabelValues("found").Inc()
	return normalizeRequesterRow(rows[0]), nil
}

func normalizeRequesterRow(row ports.RequesterProfileRow) *domain.RequesterProfile {
	return &domain.RequesterProfile{
		ID:           row.ID,
		UserID:       row.UserID,
		FullName:     row.FullName,
		PhoneNumber:  row.PhoneNumber,
		Location:     row.Location,
		District:     row.District,
		AvatarURL:    row.AvatarURL,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		PhoneVisible: truthy(row.PhoneVisible),
	}
}

// truthy coerces a loosely typed JSON value to a strict bool.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// QueryStatus is the lifecycle of a RequesterQuery.
type QueryStatus string

const (
	QueryIdle    QueryStatus = "idle"
	QueryLoading QueryStatus = "loading"
	QuerySuccess QueryStatus = "success"
	QueryError   QueryStatus = "error"
)

// RequesterQuery is one request-scoped lookup keyed by its target. It only
// leaves idle when a target is present, and its result is discarded with it.
type RequesterQuery struct {
	fetcher ports.RequesterProfileService
	target  string

	mu      sync.Mutex
	status  QueryStatus
	profile *domain.RequesterProfile
	err     error
}

// NewRequesterQuery returns an idle query for targetUserID.
func NewRequesterQuery(fetcher ports.RequesterProfileService, targetUserID string) *RequesterQuery {
	return &RequesterQuery{
		fetcher: fetcher,
		target:  strings.TrimSpace(targetUserID),
		status:  QueryIdle,
	}
}

// Key identifies the query.
func (q *RequesterQuery) Key() string { return domain.RequesterProfileKey(q.target) }

// Enabled reports whether the query may run.
func (q *RequesterQuery) Enabled() bool { return q.target != "" }

// Run performs the lookup. A disabled query stays idle.
func (q *RequesterQuery) Run(ctx context.Context) {
	if !q.Enabled() {
		return
	}
	q.mu.Lock()
	q.status = QueryLoading
	q.profile, q.err = nil, nil
	q.mu.Unlock()

	p, err := q.fetcher.Fetch(ctx, q.target)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.status, q.err = QueryError, err
		return
	}
	q.status, q.profile = QuerySuccess, p
}

// Result returns the current status with its data or error.
func (q *RequesterQuery) Result() (QueryStatus, *domain.RequesterProfile, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.status, q.profile, q.err
}
