package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HeaderRequestID identifies one command send; a repeated id is a duplicate.
const HeaderRequestID = "X-Request-ID"

// CommandKey names one command send: the caller, the board it targets and
// the client's request id.
type CommandKey struct {
	UserID    string
	BoardID   int64
	RequestID string
}

func (k CommandKey) String() string {
	return "cmd:" + k.UserID + ":" + strconv.FormatInt(k.BoardID, 10) + ":" + k.RequestID
}

// Deduper remembers which commands were already applied.
type Deduper interface {
	// Add records the command and reports whether it was new. route is kept
	// alongside the key for inspection.
	Add(ctx context.Context, key CommandKey, route string) (bool, error)
	Remove(ctx context.Context, key CommandKey) error
}

// RedisDeduper keeps applied commands in Redis so every service instance
// sees them. Entries expire after ttl.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) Add(ctx context.Context, key CommandKey, route string) (bool, error) {
	if key.RequestID == "" {
		return true, nil
	}
	return r.client.SetNX(ctx, key.String(), route, r.ttl).Result()
}

func (r *RedisDeduper) Remove(ctx context.Context, key CommandKey) error {
	return r.client.Del(ctx, key.String()).Err()
}

// idempotent answers 409 duplicate_command to a POST whose request id was
// already applied. Failed commands release their id so they can be sent again.
func idempotent(d Deduper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Request().Header.Get(HeaderRequestID)
			if d == nil || key == "" || c.Request().Method != http.MethodPost {
				return next(c)
			}
			ctx := c.Request().Context()
			cmd := CommandKey{UserID: userID(c), BoardID: boardOf(c).ID, RequestID: key}
			added, err := d.Add(ctx, cmd, c.Path())
			if err != nil {
				stage(c, "dedupe")
				return c.String(http.StatusServiceUnavailable, "dedupe_unavailable")
			}
			if !added {
				return c.String(http.StatusConflict, "duplicate_command")
			}
			err = next(c)
			if err != nil || c.Response().Status >= http.StatusBadRequest {
				_ = d.Remove(context.WithoutCancel(ctx), cmd)
			}
			return err
		}
	}
}
