package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Marker remembers keys for a while; used for event dedup and alert throttling.
type Marker struct{ R redis.Cmdable }

// Once marks key as seen. It returns false when the key was already there.
func (m Marker) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return m.R.SetNX(ctx, key, "1", ttl).Result()
}

// Forget drops a mark so the next Once succeeds again.
func (m Marker) Forget(ctx context.Context, key string) error {
	return m.R.Del(ctx, key).Err()
}

// StatusEntry is the cached shape served by GET /api/orders/{id}/status.
type StatusEntry struct {
	OrderID     int64     `json:"order_id"`
	UserID      int64     `json:"user_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type StatusCache struct{ R redis.Cmdable }

func (c StatusCache) Get(ctx context.Context, orderID int64) (*StatusEntry, bool, error) {
	s, err := c.R.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e StatusEntry
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

func (c StatusCache) Set(ctx context.Context, e StatusEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, fmt.Sprintf(KeyOrderStatus, e.OrderID), b, TTLStatusCache).Err()
}

const idemInFlight = "pending"

// ClaimOrderKey reserves an Idempotency-Key for one order placement. When the
// key is already taken it reports the order stored under it, or 0 while the
// request holding it has not finished yet.
func ClaimOrderKey(ctx context.Context, rdb redis.Cmdable, userID int64, key string) (claimed bool, orderID int64, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, userID, key)
	claimed, err = rdb.SetNX(ctx, k, idemInFlight, TTLIdemInFlight).Result()
	if err != nil || claimed {
		return claimed, 0, err
	}
	v, err := rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// holder gave up between SETNX and GET; try once more
		claimed, err = rdb.SetNX(ctx, k, idemInFlight, TTLIdemInFlight).Result()
		return claimed, 0, err
	}
	if err != nil {
		return false, 0, err
	}
	if v == idemInFlight {
		return false, 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, 0, fmt.Errorf("idempotency value %q: %w", v, err)
	}
	return false, id, nil
}

// RememberOrder stores the placed order under a claimed key.
func RememberOrder(ctx context.Context, rdb redis.Cmdable, userID int64, key string, orderID int64) error {
	return rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key), orderID, TTLIdempotency).Err()
}

// ReleaseOrderKey frees a claimed key after a failed placement so the client may retry.
func ReleaseOrderKey(ctx context.Context, rdb redis.Cmdable, userID int64, key string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, userID, key)).Err()
}
