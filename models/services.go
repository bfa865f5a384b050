// civictrack/models/services.go
package models

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// --- Collaborator Interfaces ---

// StorageService persists uploaded photo files (local disk or S3).
type StorageService interface {
	SaveFile(filename string, data []byte, contentType string) (string, error)
	DeleteFile(path string) error
}

// Notifier delivers outbound email about account and issue events.
// Implementations must be safe for concurrent use; sends are best-effort
// and never block a request path.
type Notifier interface {
	SendStatusUpdate(email, issueTitle string, status Status) error
	SendWelcome(email, firstName string) error
}

// --- Stateful Services ---

// RateLimiter tracks a token-bucket limiter per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	every    time.Duration
	burst    int
	expire   time.Duration
}

// NewRateLimiter creates and starts a new per-IP rate limiter. Entries not
// seen for the expire window are pruned every prune interval.
func NewRateLimiter(every time.Duration, burst int, prune, expire time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		every:    every,
		burst:    burst,
		expire:   expire,
	}
	go rl.cleanup(prune)
	return rl
}

// GetLimiter retrieves or creates the limiter for a given IP address.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, exists := rl.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(rl.every), rl.burst)
		rl.limiters[ip] = limiter
	}
	rl.lastSeen[ip] = time.Now()
	return limiter
}

func (rl *RateLimiter) cleanup(prune time.Duration) {
	for range time.Tick(prune) {
		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.expire)
		for ip, lastSeen := range rl.lastSeen {
			if lastSeen.Before(cutoff) {
				delete(rl.limiters, ip)
				delete(rl.lastSeen, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// SubmitLimiter caps how many issues a single user may open per day.
type SubmitLimiter interface {
	// Allow reports whether the user may submit another issue now, and if
	// not, how long until the window resets.
	Allow(ctx context.Context, userID int64) (bool, time.Duration, error)
}

// RedisSubmitLimiter counts submissions in Redis with a 24h TTL, so the
// cap holds across restarts and replicas.
type RedisSubmitLimiter struct {
	Client *redis.Client
	Prefix string
	Limit  int64
}

func (l *RedisSubmitLimiter) Allow(ctx context.Context, userID int64) (bool, time.Duration, error) {
	key := l.Prefix + ":" + time.Now().UTC().Format("2006-01-02") + ":" + strconv.FormatInt(userID, 10)
	count, err := l.Client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := l.Client.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
			return false, 0, err
		}
	}
	if count > l.Limit {
		ttl, _ := l.Client.TTL(ctx, key).Result()
		return false, ttl, nil
	}
	return true, 0, nil
}

// MemorySubmitLimiter is the in-process fallback used when Redis is not
// configured. Counters reset when the day key rolls over.
type MemorySubmitLimiter struct {
	Limit int

	mu     sync.Mutex
	day    string
	counts map[int64]int
}

func (l *MemorySubmitLimiter) Allow(_ context.Context, userID int64) (bool, time.Duration, error) {
	now := time.Now().UTC()
	day := now.Format("2006-01-02")

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.day != day {
		l.day = day
		l.counts = make(map[int64]int)
	}
	if l.counts[userID] >= l.Limit {
		midnight := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		return false, midnight.Sub(now), nil
	}
	l.counts[userID]++
	return true, 0, nil
}
