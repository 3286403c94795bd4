package redis

import (
	"context"
	"strings"
	"time"
)

const (
	keyNamespace      = "sf"
	idempotencyPrefix = "idempotency"
	lockPrefix        = "lock"
)

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
const compareAndDelete = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// IdempotencyStore is what the HTTP idempotency middleware needs. Get returns
// redis.Nil for a key never seen.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if c.store == nil {
		return "", errNotInitialized
	}
	return c.store.Get(ctx, key).Result()
}

// SetNX writes value only when key is absent and reports whether it did.
func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	return c.store.SetNX(ctx, key, value, ttl).Result()
}

// DelIfValue deletes key only while it still holds value, atomically.
func (c *Client) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	if c.store == nil {
		return false, errNotInitialized
	}
	removed, err := c.store.Eval(ctx, compareAndDelete, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return namespaced(idempotencyPrefix, scope, id)
}

func (c *Client) LockKey(parts ...string) string {
	return namespaced(append([]string{lockPrefix}, parts...)...)
}

// namespaced joins the non-blank parts under the service prefix.
func namespaced(parts ...string) string {
	key := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key = append(key, part)
		}
	}
	return strings.Join(key, ":")
}
