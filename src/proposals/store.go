package proposals

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const tableName = "proposals"

// DefaultTimeout bounds a single store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Proposal is the only persisted entity. Votes is mutated exclusively by
// IncrementVote.
type Proposal struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID   int64     `gorm:"not null;index" json:"author_id"`
	AuthorName string    `gorm:"size:255;not null;default:''" json:"author_name"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	Votes      int64     `gorm:"not null;default:0;index" json:"votes"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Proposal) TableName() string { return tableName }

// IncrementStrategy selects how the increment-and-return is issued.
type IncrementStrategy int

const (
	// IncrementAuto picks Returning for postgres and sqlite, Transaction otherwise.
	IncrementAuto IncrementStrategy = iota
	// IncrementReturning issues one UPDATE ... RETURNING statement.
	IncrementReturning
	// IncrementTransaction updates then reads the row inside one transaction
	// for dialects without RETURNING (mysql).
	IncrementTransaction
)

// Store is the only component that talks to the proposals table. It holds
// no proposal state between calls.
type Store struct {
	db       *gorm.DB
	timeout  time.Duration
	strategy IncrementStrategy
}

type Option func(*Store)

// WithTimeout bounds every store call, including pool acquisition.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithIncrementStrategy overrides the dialect based choice.
func WithIncrementStrategy(strategy IncrementStrategy) Option {
	return func(s *Store) { s.strategy = strategy }
}

func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	if s.strategy == IncrementAuto {
		s.strategy = strategyFor(db.Dialector.Name())
	}
	return s
}

// Migrate creates or updates the proposals table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Proposal{})
}

func strategyFor(dialect string) IncrementStrategy {
	switch dialect {
	case "postgres", "sqlite":
		return IncrementReturning
	default:
		return IncrementTransaction
	}
}

// CreateProposal inserts a proposal with zero votes and returns its id.
func (s *Store) CreateProposal(ctx context.Context, authorID int64, authorName, text string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	p := Proposal{AuthorID: authorID, AuthorName: authorName, Text: text}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, wrap("create proposal", err)
	}
	return p.ID, nil
}

// ListProposals returns a snapshot of every proposal ordered by votes
// descending. Equal vote counts keep insertion order (ascending id).
func (s *Store) ListProposals(ctx context.Context) ([]Proposal, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows := []Proposal{}
	if err := s.db.WithContext(ctx).Order("votes DESC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, wrap("list proposals", err)
	}
	return rows, nil
}

// IncrementVote adds one vote to the proposal and returns its text in the
// same atomic operation. Returns ErrNotFound when no row matches id.
func (s *Store) IncrementVote(ctx context.Context, id int64) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if s.strategy == IncrementReturning {
		return s.incrementReturning(ctx, id)
	}
	return s.incrementInTransaction(ctx, id)
}

func (s *Store) incrementReturning(ctx context.Context, id int64) (string, error) {
	var row Proposal
	res := s.db.WithContext(ctx).
		Raw("UPDATE "+tableName+" SET votes = votes + 1 WHERE id = ? RETURNING text", id).
		Scan(&row)
	if res.Error != nil {
		return "", wrap("increment vote", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return row.Text, nil
}

func (s *Store) incrementInTransaction(ctx context.Context, id int64) (string, error) {
	var text string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Proposal{}).Where("id = ?", id).UpdateColumn("votes", gorm.Expr("votes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		// The row lock from the UPDATE is held until commit.
		var p Proposal
		if err := tx.Select("text").Where("id = ?", id).Take(&p).Error; err != nil {
			return err
		}
		text = p.Text
		return nil
	})
	if err != nil {
		return "", wrap("increment vote", err)
	}
	return text, nil
}

// Get fetches one proposal.
func (s *Store) Get(ctx context.Context, id int64) (Proposal, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var p Proposal
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return Proposal{}, wrap("get proposal", err)
	}
	return p, nil
}

// Ping checks that a pooled connection can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err != nil {
		return wrap("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return wrap("ping", err)
	}
	return nil
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func wrap(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	default:
		return &StorageError{Op: op, Err: err}
	}
}
