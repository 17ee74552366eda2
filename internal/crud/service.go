package crud

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sitework/sitework/internal/cache"
	"github.com/sitework/sitework/internal/query"
	"github.com/sitework/sitework/pkg/logger"
	"github.com/sitework/sitework/pkg/metrics"
)

// CheckFunc validates a row before it is written. existing is the zero value on
// create.
type CheckFunc[T Entity] func(ctx context.Context, existing, next T) error

// Service wraps a Repository with id assignment, timestamps, validation hooks
// and a short-TTL list cache that is dropped on every write.
type Service[T Entity] struct {
	name  string
	repo  Repository[T]
	cache cache.Cache
	ttl   time.Duration
	check CheckFunc[T]
	now   func() time.Time
}

// Validator is implemented by models with invariants beyond field tags.
type Validator interface {
	Validate() error
}

func (s *Service[T]) validate(ctx context.Context, existing, next T) error {
	if v, ok := any(next).(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if s.check != nil {
		return s.check(ctx, existing, next)
	}
	return nil
}

// Option configures a Service.
type Option[T Entity] func(*Service[T])

// WithCache enables list caching.
func WithCache[T Entity](c cache.Cache, ttl time.Duration) Option[T] {
	return func(s *Service[T]) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithCheck installs a validation hook.
func WithCheck[T Entity](fn CheckFunc[T]) Option[T] {
	return func(s *Service[T]) { s.check = fn }
}

func NewService[T Entity](name string, repo Repository[T], opts ...Option[T]) *Service[T] {
	s := &Service[T]{name: name, repo: repo, now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name is the resource name used in cache keys and error messages.
func (s *Service[T]) Name() string { return s.name }

func (s *Service[T]) Create(ctx context.Context, e T) (T, error) {
	var zero T
	if err := s.validate(ctx, zero, e); err != nil {
		return zero, err
	}
	if e.GetID() == "" {
		e.SetID(uuid.NewString())
	}
	e.SetCreated(time.Time{})
	e.Stamp(s.now())
	if err := s.repo.Create(ctx, e); err != nil {
		return zero, err
	}
	s.invalidate(ctx)
	return e, nil
}

func (s *Service[T]) Get(ctx context.Context, id string) (T, error) {
	return s.repo.Get(ctx, id)
}

type listResult[T Entity] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// List returns one page of rows and the total number of matches.
func (s *Service[T]) List(ctx context.Context, p query.Page) ([]T, int, error) {
	key := s.name + ":" + p.CacheKey()
	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var res listResult[T]
			if err := json.Unmarshal(b, &res); err == nil {
				metrics.CacheLookups.WithLabelValues(s.name, "hit").Inc()
				return res.Items, res.Total, nil
			}
		}
		metrics.CacheLookups.WithLabelValues(s.name, "miss").Inc()
	}
	items, total, err := s.repo.List(ctx, p)
	if err != nil {
		return nil, 0, err
	}
	if s.cache != nil {
		if b, err := json.Marshal(listResult[T]{Items: items, Total: total}); err == nil {
			if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
				logger.Warnf("cache set %s: %v", key, err)
			}
		}
	}
	return items, total, nil
}

// Update replaces the row with id, keeping its creation time.
func (s *Service[T]) Update(ctx context.Context, id string, next T) (T, error) {
	var zero T
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := s.validate(ctx, existing, next); err != nil {
		return zero, err
	}
	next.SetID(id)
	next.SetCreated(existing.Created())
	next.Stamp(s.now())
	if err := s.repo.Update(ctx, next); err != nil {
		return zero, err
	}
	s.invalidate(ctx)
	return next, nil
}

func (s *Service[T]) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service[T]) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePrefix(ctx, s.name+":"); err != nil {
		logger.Warnf("cache invalidate %s: %v", s.name, err)
	}
}
