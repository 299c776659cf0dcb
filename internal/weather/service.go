package weather

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Provider fetches the current observation for a point.
type Provider interface {
	GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)
	Name() string
}

const (
	DefaultCacheTTL        = 10 * time.Minute
	DefaultCacheGridSize   = 0.1 // degrees, roughly 11 km at the equator
	DefaultStaleIfErrorTTL = time.Hour
	DefaultFetchTimeout    = 15 * time.Second

	sweepInterval = 5 * time.Minute
)

// ServiceConfig configures a Service. Zero values take the defaults above.
type ServiceConfig struct {
	Provider Provider
	Logger   zerolog.Logger
	Clock    clockwork.Clock

	// CacheTTL is how long an observation answers requests for its cell.
	CacheTTL time.Duration

	// CacheGridSize is the cell edge in degrees. Points in one cell share
	// an observation.
	CacheGridSize float64

	// StaleIfErrorTTL is how long past its fetch an observation may still
	// be served when the provider fails.
	StaleIfErrorTTL time.Duration

	// FetchTimeout bounds one upstream fetch. It replaces the caller's
	// deadline because the fetch may be shared.
	FetchTimeout time.Duration
}

// Service fronts a Provider with a grid-cell cache. Concurrent misses for
// one cell share a single upstream call.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	clock    clockwork.Clock
	ttl      time.Duration
	grid     float64
	stale    time.Duration
	timeout  time.Duration

	flight singleflight.Group

	mu        sync.RWMutex
	cells     map[string]cell
	lastSweep time.Time

	hits, misses, staleServed atomic.Uint64
}

type cell struct {
	obs       *Observation
	fetchedAt time.Time
}

func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		ttl:      cfg.CacheTTL,
		grid:     cfg.CacheGridSize,
		stale:    cfg.StaleIfErrorTTL,
		timeout:  cfg.FetchTimeout,
		cells:    map[string]cell{},
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultCacheTTL
	}
	if s.grid <= 0 {
		s.grid = DefaultCacheGridSize
	}
	if s.stale <= 0 {
		s.stale = DefaultStaleIfErrorTTL
	}
	if s.timeout <= 0 {
		s.timeout = DefaultFetchTimeout
	}
	return s
}

// Name returns the provider name.
func (s *Service) Name() string {
	return s.provider.Name()
}

// GetCurrentWeather returns the observation for the cell containing the
// point, fetching it when the cached one is older than the TTL. The result
// is a copy carrying the requested coordinates rather than those of the
// request that filled the cell. Provider failures are wrapped in
// ErrProviderUnavailable unless a stale observation can be served instead.
//
// A fetch shared by several callers runs detached from any one caller's
// context, bounded by the fetch timeout; each caller still returns as soon
// as its own context is done.
func (s *Service) GetCurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	key := s.cellKey(lat, lon)
	if obs, ok := s.fresh(key); ok {
		s.hits.Add(1)
		return at(obs, lat, lon), nil
	}

	ch := s.flight.DoChan(key, func() (any, error) {
		// Another caller may have filled the cell while we waited.
		if obs, ok := s.fresh(key); ok {
			return obs, nil
		}
		s.misses.Add(1)

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refresh(fetchCtx, key, lat, lon)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return at(res.Val.(*Observation), lat, lon), nil
	}
}

// at copies obs with the coordinates of the requested point.
func at(obs *Observation, lat, lon float64) *Observation {
	out := *obs
	out.Lat = Float64(lat)
	out.Lon = Float64(lon)
	return &out
}

func (s *Service) fresh(key string) (*Observation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cells[key]
	if !ok || !s.clock.Now().Before(c.fetchedAt.Add(s.ttl)) {
		return nil, false
	}
	return c.obs, true
}

func (s *Service) refresh(ctx context.Context, key string, lat, lon float64) (*Observation, error) {
	log := s.logger.With().
		Str("provider", s.provider.Name()).
		Str("cell", key).
		Logger()

	log.Debug().Float64("lat", lat).Float64("lon", lon).Msg("fetching observation")

	obs, err := s.provider.GetCurrentWeather(ctx, lat, lon)
	now := s.clock.Now()
	if err != nil {
		s.mu.RLock()
		prev, ok := s.cells[key]
		s.mu.RUnlock()

		if ok && now.Before(prev.fetchedAt.Add(s.stale)) {
			s.staleServed.Add(1)
			log.Warn().Err(err).
				Time("fetched_at", prev.fetchedAt).
				Msg("provider failed, serving stale observation")
			return prev.obs, nil
		}

		log.Error().Err(err).Msg("provider failed")
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	s.mu.Lock()
	s.cells[key] = cell{obs: obs, fetchedAt: now}
	s.sweep(now)
	s.mu.Unlock()

	return obs, nil
}

// sweep drops cells too old to serve even as stale. Caller holds mu.
func (s *Service) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	dropped := 0
	for key, c := range s.cells {
		if now.After(c.fetchedAt.Add(s.stale)) {
			delete(s.cells, key)
			dropped++
		}
	}
	if dropped > 0 {
		s.logger.Debug().Int("dropped", dropped).Msg("swept weather cache")
	}
}

// cellKey snaps a point to the south-west corner of its grid cell.
func (s *Service) cellKey(lat, lon float64) string {
	snap := func(v float64) string {
		return strconv.FormatFloat(math.Floor(v/s.grid)*s.grid, 'f', 2, 64)
	}
	return snap(lat) + ":" + snap(lon)
}

// InvalidateCache drops every cached observation.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cells = map[string]cell{}
	s.mu.Unlock()
}

// CacheStats describes the cache for the status endpoint.
type CacheStats struct {
	Provider     string `json:"provider"`
	Entries      int    `json:"entries"`
	FreshEntries int    `json:"fresh_entries"`
	Hits         uint64 `json:"hits"`
	Misses       uint64 `json:"misses"`
	StaleServed  uint64 `json:"stale_served"`
}

func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.clock.Now()
	stats := CacheStats{
		Provider:    s.provider.Name(),
		Entries:     len(s.cells),
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		StaleServed: s.staleServed.Load(),
	}
	for _, c := range s.cells {
		if now.Before(c.fetchedAt.Add(s.ttl)) {
			stats.FreshEntries++
		}
	}
	return stats
}

func validateCoordinates(lat, lon float64) error {
	switch {
	case math.IsNaN(lat), math.IsNaN(lon):
		return ErrInvalidCoordinates
	case lat < -90, lat > 90, lon < -180, lon > 180:
		return ErrInvalidCoordinates
	}
	return nil
}
