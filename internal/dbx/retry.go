package dbx

import (
	"context"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// RetryConfig controls how transient SQLite errors are retried.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetryConfig is used by the store for every write.
var DefaultRetryConfig = RetryConfig{
	Attempts: 4,
	Delay:    50 * time.Millisecond,
	MaxDelay: 500 * time.Millisecond,
}

// IsTransient reports whether err is a SQLite contention error that may
// succeed when retried: SQLITE_BUSY (5), SQLITE_LOCKED (6) and
// SQLITE_IOERR_SHORT_READ (522). modernc.org/sqlite embeds both the symbolic
// name and the numeric code in the message.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
		"(5)",
		"(6)",
		"(522)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Retry runs fn until it succeeds, returns a non-transient error, the
// attempts are exhausted or ctx is done. The last error is returned as is so
// callers can keep matching it with errors.Is.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
	)
}
