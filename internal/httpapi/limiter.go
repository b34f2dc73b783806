package httpapi

import (
	"context"
	"strings"
	"time"

	"onevizn-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter caps failed login attempts per user_name inside a rolling
// window, backed by Redis so the cap holds across instances.
type LoginLimiter struct {
	RDB    *redis.Client
	Max    int
	Window time.Duration
}

func (l *LoginLimiter) key(userName string) string {
	return "login_attempts:" + strings.ToLower(userName)
}

// Allow records an attempt and reports whether it is within the cap.
func (l *LoginLimiter) Allow(ctx context.Context, userName string) (bool, error) {
	return utils.AcquireLoginAttempt(ctx, l.RDB, l.key(userName), l.Max, l.Window)
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, userName string) error {
	return utils.ResetLoginAttempts(ctx, l.RDB, l.key(userName))
}
