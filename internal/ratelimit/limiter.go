// Package ratelimit throttles the public booking endpoints per client IP.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Config struct {
	MaxRequests int           // Requests allowed per key per window (default: 30)
	Window      time.Duration // Window length (default: 1m)
	TrustProxy  bool          // Read the client IP from X-Forwarded-For / X-Real-IP

	// Clock for testing (nil uses real time)
	Clock Clock
}

func DefaultConfig() *Config {
	return &Config{
		MaxRequests: 30,
		Window:      time.Minute,
	}
}

// LimitResult contains the result of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// entry tracks request counts within the current window.
type entry struct {
	count   int
	firstAt time.Time
	lastAt  time.Time
}

// Limiter is a fixed-window counter keyed by an opaque client key.
type Limiter struct {
	config  *Config
	clock   Clock
	mu      sync.Mutex
	entries map[string]*entry

	cleanupCtx    context.Context
	cleanupCancel context.CancelFunc
	cleanupOnce   sync.Once
	cleanupWg     sync.WaitGroup
}

func New(cfg *Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultConfig().MaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Limiter{
		config:        cfg,
		clock:         clock,
		entries:       make(map[string]*entry),
		cleanupCtx:    ctx,
		cleanupCancel: cancel,
	}
}

// Close stops the cleanup goroutine and releases resources.
func (l *Limiter) Close() {
	l.cleanupCancel()
	l.cleanupWg.Wait()
}

// Allow records a request for key and reports whether it fits in the
// current window.
func (l *Limiter) Allow(key string) LimitResult {
	l.startCleanup()
	now := l.clock.Now()
	hashed := hashKey(key)

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entries[hashed]
	if e == nil || now.Sub(e.firstAt) >= l.config.Window {
		l.entries[hashed] = &entry{count: 1, firstAt: now, lastAt: now}
		return LimitResult{Allowed: true, Remaining: l.config.MaxRequests - 1}
	}

	e.lastAt = now
	if e.count >= l.config.MaxRequests {
		return LimitResult{
			Allowed:    false,
			RetryAfter: l.config.Window - now.Sub(e.firstAt),
		}
	}
	e.count++
	return LimitResult{Allowed: true, Remaining: l.config.MaxRequests - e.count}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. Requests are keyed by client IP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := GetClientIP(r, l.config.TrustProxy)
		result := l.Allow(ip)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.MaxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			retry := int(result.RetryAfter.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			log.Ctx(r.Context()).Warn().
				Str("event", "rate_limit_exceeded").
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retry_after_seconds", retry).
				Msg("Rate limit exceeded")
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func hashKey(value string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(value)))
	return hex.EncodeToString(hash[:8])
}

func (l *Limiter) startCleanup() {
	l.cleanupOnce.Do(func() {
		l.cleanupWg.Add(1)
		go func() {
			defer l.cleanupWg.Done()
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-l.cleanupCtx.Done():
					return
				case <-ticker.C:
					l.cleanup()
				}
			}
		}()
	})
}

func (l *Limiter) cleanup() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.entries {
		if now.Sub(e.lastAt) > l.config.Window {
			delete(l.entries, k)
		}
	}
}

// GetClientIP returns the address requests are counted against. Forwarding
// headers are only read when trustProxy is set; X-Forwarded-For is walked
// from the right so the first public hop wins over proxy-appended entries.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if hops := forwardedHops(r.Header.Get("X-Forwarded-For")); len(hops) > 0 {
			for i := len(hops) - 1; i >= 0; i-- {
				if !isPrivateIP(hops[i]) {
					return hops[i]
				}
			}
			return hops[len(hops)-1]
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	if addrPort, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return addrPort.Addr().String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func forwardedHops(header string) []string {
	var hops []string
	for _, part := range strings.Split(header, ",") {
		if hop := strings.TrimSpace(part); hop != "" {
			hops = append(hops, hop)
		}
	}
	return hops
}

// Loopback, link-local and RFC 1918 / ULA ranges never identify a client.
var internalPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

func isPrivateIP(raw string) bool {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return false
	}
	addr = addr.Unmap().WithZone("")
	for _, prefix := range internalPrefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
