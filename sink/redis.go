package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list reports are pushed onto.
const DefaultRedisKey = "mysqlpool:errors"

// Event is the JSON document pushed by the Redis sink.
type Event struct {
	Tag      string    `json:"tag"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
	Extras   string    `json:"extras,omitempty"`
	Time     time.Time `json:"time"`
}

// Redis pushes persisted reports onto a Redis list so several processes can
// share one error feed. Reports with persist unset are ignored.
type Redis struct {
	Client  redis.UniversalClient
	Key     string
	Tag     string
	Timeout time.Duration
}

// NewRedis creates a Redis sink with its own client.
func NewRedis(opt *redis.Options, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{
		Client:  redis.NewClient(opt),
		Key:     key,
		Tag:     DefaultTag,
		Timeout: 2 * time.Second,
	}
}

func (r *Redis) Report(category, message, extras string, persist bool) {
	if !persist || r.Client == nil {
		return
	}

	payload, err := json.Marshal(Event{
		Tag:      r.Tag,
		Category: category,
		Message:  message,
		Extras:   extras,
		Time:     time.Now().UTC(),
	})
	if err != nil {
		return
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_ = r.Client.RPush(ctx, r.Key, payload).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
