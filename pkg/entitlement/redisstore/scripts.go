package redisstore

import "github.com/redis/go-redis/v9"

// KEYS[1] record key; ARGV flattened field/value pairs.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

// KEYS[1] record key; ARGV[1] "1" when the new record is a tombstone,
// the rest are field/value pairs.
var replaceScript = redis.NewScript(`
if ARGV[1] == '0' and redis.call('HGET', KEYS[1], 'deleted') == '1' then
	return 0
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return 1
`)

// KEYS[1] record key; ARGV[1] feature; ARGV[2] amount.
// Returns {applied, count, cap}; applied is -1 when the record is missing.
var incrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return {-1, 0, 0}
end
local count = tonumber(redis.call('HGET', KEYS[1], 'count:' .. ARGV[1]) or '0')
local cap = tonumber(redis.call('HGET', KEYS[1], 'cap:' .. ARGV[1]) or '0')
local by = tonumber(ARGV[2])
if cap ~= -1 and count + by > cap then
	return {0, count, cap}
end
count = redis.call('HINCRBY', KEYS[1], 'count:' .. ARGV[1], by)
return {1, count, cap}
`)

// KEYS[1] record key; ARGV[1] feature; ARGV[2] amount.
// Returns the new count, or -1 when the record is missing.
var decrementScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local field = 'count:' .. ARGV[1]
local count = redis.call('HGET', KEYS[1], field)
if not count then
	return 0
end
local left = tonumber(count) - tonumber(ARGV[2])
if left < 0 then
	left = 0
end
redis.call('HSET', KEYS[1], field, left)
return left
`)
