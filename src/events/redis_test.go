package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb, err := NewRedis("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	pub := NewRedisPublisher(rdb)
	ctx := context.Background()
	require.NoError(t, pub.Ping(ctx))

	at := time.Unix(1700000000, 0)
	require.NoError(t, pub.Publish(ctx, Event{
		Type:       TypeSubmitted,
		ProposalID: 12,
		AuthorID:   99,
		AuthorName: "alice",
		Text:       "Build a park",
		At:         at,
	}))
	require.NoError(t, pub.Publish(ctx, Event{Type: TypeVoted, ProposalID: 12, Text: "Build a park"}))

	entries, err := rdb.XRange(ctx, Stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0].Values
	assert.Equal(t, TypeSubmitted, first["type"])
	assert.Equal(t, "12", first["proposal_id"])
	assert.Equal(t, "99", first["author_id"])
	assert.Equal(t, "alice", first["author_name"])
	assert.Equal(t, "Build a park", first["text"])
	assert.Equal(t, "1700000000", first["time"])

	assert.Equal(t, TypeVoted, entries[1].Values["type"])
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis("not a url")
	require.Error(t, err)
}

func TestPublishFailsWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := NewRedis("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = NewRedisPublisher(rdb).Publish(ctx, Event{Type: TypeVoted, ProposalID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), TypeVoted)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
}
