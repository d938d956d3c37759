package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	selectPoll = `-- name: poll
SELECT id::text, title, COALESCE(description, ''), COALESCE(total_votes, 0), COALESCE(total_likes, 0)
FROM polls
WHERE id = $1`

	selectPollOptions = `-- name: poll_options
SELECT id::text, option_text, COALESCE(vote_count, 0), position
FROM poll_options
WHERE poll_id = $1
ORDER BY position`
)

// PollRepo reads poll snapshots from the tables owned by the poll service.
type PollRepo struct {
	pool *pgxpool.Pool
}

func NewPollRepo(pool *pgxpool.Pool) *PollRepo {
	return &PollRepo{pool: pool}
}

// GetSnapshot loads a poll and its options ordered by position. Ids that are
// not UUIDs cannot name a poll and yield ErrPollNotFound.
func (r *PollRepo) GetSnapshot(ctx context.Context, pollID string) (*domain.PollSnapshot, error) {
	id, err := uuid.Parse(pollID)
	if err != nil {
		return nil, domain.ErrPollNotFound
	}

	var snapshot domain.PollSnapshot
	err = r.pool.QueryRow(ctx, selectPoll, id).Scan(&snapshot.ID, &snapshot.Title, &snapshot.Description, &snapshot.TotalVotes, &snapshot.TotalLikes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	rows, err := r.pool.Query(ctx, selectPollOptions, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll options: %w", err)
	}
	snapshot.Options, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PollOption, error) {
		var opt domain.PollOption
		err := row.Scan(&opt.ID, &opt.OptionText, &opt.VoteCount, &opt.Position)
		return opt, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read poll options: %w", err)
	}
	if snapshot.Options == nil {
		snapshot.Options = []domain.PollOption{}
	}

	return &snapshot, nil
}

// Ping reports whether the database is reachable.
func (r *PollRepo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}
