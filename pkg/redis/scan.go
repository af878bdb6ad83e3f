package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ScanKeys walks every key matching pattern with SCAN and calls fn for each.
// A non-nil error from fn stops the walk and is returned as is.
func ScanKeys(ctx context.Context, client redis.UniversalClient, pattern string, batch int64, fn func(key string) error) error {
	if batch <= 0 {
		batch = 500
	}

	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, pattern, batch).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
