package proposals

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stake-plus/govproposals/src/data"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := data.Connect("sqlite::memory:", data.PoolConfig{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { _ = data.Close(db) })
	return db
}

var strategies = []struct {
	name     string
	strategy IncrementStrategy
}{
	{"returning", IncrementReturning},
	{"transaction", IncrementTransaction},
}

func TestStrategyForDialect(t *testing.T) {
	assert.Equal(t, IncrementReturning, strategyFor("postgres"))
	assert.Equal(t, IncrementReturning, strategyFor("sqlite"))
	assert.Equal(t, IncrementTransaction, strategyFor("mysql"))

	store := NewStore(openTestDB(t))
	assert.Equal(t, IncrementReturning, store.strategy)
}

func TestCreateAndList(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	id, err := store.CreateProposal(ctx, 77, "alice", "Build a park")
	require.NoError(t, err)
	assert.Positive(t, id)

	emptyID, err := store.CreateProposal(ctx, 0, "", "")
	require.NoError(t, err)
	assert.Greater(t, emptyID, id)

	list, err := store.ListProposals(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, int64(77), list[0].AuthorID)
	assert.Equal(t, "alice", list[0].AuthorName)
	assert.Equal(t, "Build a park", list[0].Text)
	assert.Zero(t, list[0].Votes)

	assert.Equal(t, emptyID, list[1].ID)
	assert.Empty(t, list[1].Text)
	assert.Empty(t, list[1].AuthorName)
	assert.Zero(t, list[1].Votes)
}

func TestListEmpty(t *testing.T) {
	list, err := NewStore(openTestDB(t)).ListProposals(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestListOrdersByVotesDescending(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	votes := []int{3, 1, 5}
	ids := make([]int64, len(votes))
	for i, n := range votes {
		id, err := store.CreateProposal(ctx, int64(i), "author", "p")
		require.NoError(t, err)
		ids[i] = id
		for j := 0; j < n; j++ {
			_, err := store.IncrementVote(ctx, id)
			require.NoError(t, err)
		}
	}

	list, err := store.ListProposals(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{5, 3, 1}, []int64{list[0].Votes, list[1].Votes, list[2].Votes})
	assert.Equal(t, []int64{ids[2], ids[0], ids[1]}, []int64{list[0].ID, list[1].ID, list[2].ID})
}

func TestListTieBreakIsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore(openTestDB(t))

	var ids []int64
	for _, text := range []string{"first", "second", "third"} {
		id, err := store.CreateProposal(ctx, 1, "a", text)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	list, err := store.ListProposals(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i := range ids {
		assert.Equal(t, ids[i], list[i].ID)
	}
}

func TestIncrementVote(t *testing.T) {
	for _, tt := range strategies {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(openTestDB(t), WithIncrementStrategy(tt.strategy))

			id, err := store.CreateProposal(ctx, 1, "bob", "Build a park")
			require.NoError(t, err)

			text, err := store.IncrementVote(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, "Build a park", text)

			p, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, int64(1), p.Votes)
		})
	}
}

func TestIncrementVoteNotFound(t *testing.T) {
	for _, tt := range strategies {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(openTestDB(t), WithIncrementStrategy(tt.strategy))

			id, err := store.CreateProposal(ctx, 1, "bob", "exists")
			require.NoError(t, err)

			_, err = store.IncrementVote(ctx, id+100)
			require.ErrorIs(t, err, ErrNotFound)
			assert.False(t, IsStorageError(err))

			p, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Zero(t, p.Votes, "missing id must not mutate other rows")
		})
	}
}

func TestConcurrentVotesAreNotLost(t *testing.T) {
	for _, tt := range strategies {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(openTestDB(t), WithIncrementStrategy(tt.strategy), WithTimeout(30*time.Second))

			id, err := store.CreateProposal(ctx, 1, "carol", "Concurrent")
			require.NoError(t, err)
			_, err = store.IncrementVote(ctx, id)
			require.NoError(t, err)

			const voters = 50
			var (
				wg       sync.WaitGroup
				failures atomic.Int64
			)
			for j := 0; j < voters; j++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if text, err := store.IncrementVote(ctx, id); err != nil || text != "Concurrent" {
						failures.Add(1)
					}
				}()
			}
			wg.Wait()

			require.Zero(t, failures.Load())
			p, err := store.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, int64(voters+1), p.Votes)
		})
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := NewStore(openTestDB(t)).Get(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPoolExhaustionTimesOut(t *testing.T) {
	db := openTestDB(t)
	store := NewStore(db, WithTimeout(50*time.Millisecond))

	// The in-memory pool has a single connection; hold it.
	tx := db.Begin()
	require.NoError(t, tx.Error)
	defer tx.Rollback()

	_, err := store.ListProposals(context.Background())
	require.Error(t, err)

	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Timeout())
	assert.Equal(t, "list proposals", se.Op)
}

func TestPing(t *testing.T) {
	require.NoError(t, NewStore(openTestDB(t)).Ping(context.Background()))
}

func TestStorageErrorConstraint(t *testing.T) {
	se := &StorageError{Op: "create proposal", Err: errors.New("NOT NULL constraint failed: proposals.text")}
	assert.True(t, se.Constraint())
	assert.False(t, se.Timeout())
	assert.Contains(t, se.Error(), "create proposal")

	timeout := &StorageError{Op: "list proposals", Err: context.DeadlineExceeded}
	assert.True(t, timeout.Timeout())
	assert.False(t, timeout.Constraint())
}
