package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Stream receives one entry per committed submit or vote.
	Stream = "govproposals.events"

	streamMaxLen = 10000
)

const (
	TypeSubmitted = "proposal.submitted"
	TypeVoted     = "proposal.voted"
)

// Event describes a state change that already committed in the store.
type Event struct {
	Type       string
	ProposalID int64
	AuthorID   int64
	AuthorName string
	Text       string
	At         time.Time
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// NewRedis parses a redis:// URL into a client.
func NewRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return redis.NewClient(opt), nil
}

// RedisPublisher appends events to a capped redis stream.
type RedisPublisher struct {
	rdb    *redis.Client
	stream string
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, stream: Stream}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":        ev.Type,
			"proposal_id": strconv.FormatInt(ev.ProposalID, 10),
			"author_id":   strconv.FormatInt(ev.AuthorID, 10),
			"author_name": ev.AuthorName,
			"text":        ev.Text,
			"time":        ev.At.Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Ping checks the redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}
