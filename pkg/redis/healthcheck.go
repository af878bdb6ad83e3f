package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const probeTTL = 10 * time.Second

// Healthcheck pings the server and writes a short-lived probe key under
// keyPrefix. A read-only replica fails the check because the ledger needs
// writes.
func Healthcheck(client redis.UniversalClient, keyPrefix string) func(context.Context) error {
	key := keyPrefix + "health"
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		if err := client.Set(ctx, key, stamp, probeTTL).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
