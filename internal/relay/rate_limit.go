package relay

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter caps how often messages may trigger the analysis API, per channel and overall.
type RateLimiter struct {
	channel *scopedLimiter
	global  *rate.Limiter
}

type scopedLimiter struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rate  rate.Limit
	burst int
}

func newScopedLimiter(perMinute int) *scopedLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &scopedLimiter{
		m:     make(map[string]*rate.Limiter),
		rate:  rate.Limit(float64(perMinute) / 60.0),
		burst: perMinute,
	}
}

func (s *scopedLimiter) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.m[key]
	if !ok {
		lim = rate.NewLimiter(s.rate, s.burst)
		s.m[key] = lim
	}
	return lim.Allow()
}

// NewRateLimiter constructs a limiter with per-channel and global budgets per minute
func NewRateLimiter(channelPerMinute, globalPerMinute int) *RateLimiter {
	if globalPerMinute <= 0 {
		globalPerMinute = 60
	}
	return &RateLimiter{
		channel: newScopedLimiter(channelPerMinute),
		global:  rate.NewLimiter(rate.Limit(float64(globalPerMinute)/60.0), globalPerMinute),
	}
}

func (r *RateLimiter) Allow(channelID string) bool {
	if !r.global.Allow() {
		return false
	}
	return r.channel.allow(channelID)
}
