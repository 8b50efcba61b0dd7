// Package redis implements store.Store on Redis. Goals are stored as JSON
// strings indexed by a Sorted Set scored on creation time, snapshots live
// in one Sorted Set per goal scored on their timestamp, and job locks are
// Hashes claimed and released by Lua scripts so that the check and the
// write happen atomically on the server clock.
//
// The caller owns the Redis client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
