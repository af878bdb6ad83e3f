// Package redis connects to Redis with github.com/redis/go-redis/v9 and
// provides the health check and key scanning helpers shared by the Redis
// backed entitlement store and the payment event log.
package redis
