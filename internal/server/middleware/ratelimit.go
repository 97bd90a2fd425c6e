package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/iudanet/estisync/pkg/api"
)

// RateLimiter ограничивает число запросов на ключ в пределах окна.
// Окно начинается с первого запроса и по истечении восстанавливает весь лимит.
type RateLimiter struct {
	now      func() time.Time
	buckets  map[string]*bucket
	logger   *slog.Logger
	cleanupC chan struct{}
	rate     int
	window   time.Duration
	stopOnce sync.Once
	mu       sync.Mutex
}

type bucket struct {
	windowStart time.Time
	tokens      int
}

// NewRateLimiter создает limiter на rate запросов за window.
// Неактивные ключи удаляются в фоне до вызова Stop.
func NewRateLimiter(rate int, window time.Duration, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		logger:   logger,
		cleanupC: make(chan struct{}),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window * 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.prune()
		case <-rl.cleanupC:
			return
		}
	}
}

// prune удаляет ключи, не использовавшиеся дольше двух окон
func (rl *RateLimiter) prune() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for key, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window*2 {
			delete(rl.buckets, key)
			n++
		}
	}
	return n
}

// Stop останавливает фоновую очистку. Повторный вызов ничего не делает.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.cleanupC) })
}

// Allow расходует один запрос из лимита ключа
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		b = &bucket{windowStart: now, tokens: rl.rate}
		rl.buckets[key] = b
	}
	if b.tokens == 0 {
		return false
	}
	b.tokens--
	return true
}

// Middleware ограничивает запросы по паре (клиент, документ).
// Автосохранение одного редактора не расходует лимит других документов.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if id := r.PathValue("id"); id != "" {
			key += "|" + id
		}

		if !rl.Allow(key) {
			rl.logger.Warn("Rate limit exceeded",
				"ip", clientIP(r),
				"document_id", r.PathValue("id"),
				"method", r.Method,
				"path", r.URL.Path,
			)

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter(rl.window))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(api.ErrorResponse{
				Error:   "rate limit exceeded",
				Message: "please try again later",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// clientIP извлекает IP адрес клиента из запроса.
// Проверяет заголовки X-Forwarded-For и X-Real-IP для прокси.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// первый адрес в списке - реальный клиент
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
