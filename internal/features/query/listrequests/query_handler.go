package listrequests

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vmgatelabs/vmgate/internal/cache"
	"github.com/vmgatelabs/vmgate/internal/projection"
)

// cacheTTL bounds how stale a cached list can get when an invalidation from a
// command handler is lost.
const cacheTTL = 30 * time.Second

// ReadModel is the slice of the projection reader this handler needs.
type ReadModel interface {
	ListByTenant(ctx context.Context, tenantID, status string) ([]projection.RequestRecord, error)
}

// ListCache caches serialized result lists per tenant and status. Get decodes
// into the supplied destination; any Get error (miss, disabled cache,
// transport failure) sends the handler to the database instead.
type ListCache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// QueryHandler serves tenant request lists from the projection with a
// read-through cache in front.
type QueryHandler struct {
	reader    ReadModel
	listCache ListCache
}

// Option configures a QueryHandler.
type Option func(*QueryHandler)

// WithListCache enables the read-through cache.
func WithListCache(listCache ListCache) Option {
	return func(h *QueryHandler) {
		h.listCache = listCache
	}
}

// NewQueryHandler creates a new QueryHandler with the given options.
func NewQueryHandler(reader ReadModel, opts ...Option) QueryHandler {
	handler := QueryHandler{
		reader: reader,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle returns the tenant's request records, newest first. The cache can
// only ever make the query faster, not fail it: every Get error falls back to
// the projection database, and repopulating the key is best-effort.
func (h QueryHandler) Handle(ctx context.Context, query Query) ([]projection.RequestRecord, error) {
	key := cache.RequestListCacheKey(query.TenantID, query.Status)

	if h.listCache != nil {
		var cached []projection.RequestRecord
		if err := h.listCache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	records, err := h.reader.ListByTenant(ctx, query.TenantID.String(), query.Status)
	if err != nil {
		return nil, err
	}

	if h.listCache != nil {
		if err := h.listCache.Set(ctx, key, records, cacheTTL); err != nil {
			log.Warn().
				Err(err).
				Str("tenantId", query.TenantID.String()).
				Str("queryType", queryType).
				Msg("Request list cache population failed")
		}
	}

	return records, nil
}
