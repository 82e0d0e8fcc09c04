// Package cache builds the Redis client shared by read-through caches.
package cache

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ParseOptions accepts either a redis:// URL or the comma-separated
// "host:port,password=...,ssl=true" form used by managed caches.
func ParseOptions(conn string) *redis.Options {
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}

// New returns nil when conn is empty; callers treat a nil client as
// "caching disabled".
func New(ctx context.Context, conn string) (*redis.Client, error) {
	if conn == "" {
		return nil, nil
	}
	rc := redis.NewClient(ParseOptions(conn))
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, err
	}
	return rc, nil
}
