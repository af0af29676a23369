package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store defines the generation archive operations.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveGeneration records a generation and its nodes. An empty ID is
	// replaced with a new UUID; a zero CreatedAt with the current time.
	SaveGeneration(ctx context.Context, gen *Generation) error

	// CountGenerations returns the number of archived generations.
	CountGenerations(ctx context.Context) (int, error)

	// GetGeneration loads a generation and its nodes. Returns nil, nil if not found.
	GetGeneration(ctx context.Context, id string) (*Generation, error)

	// PruneGenerations deletes generations created before the cutoff and
	// returns how many were removed.
	PruneGenerations(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func (s *sqlxStore) SaveGeneration(ctx context.Context, gen *Generation) error {
	if gen == nil {
		return errors.New("generation cannot be nil")
	}
	if gen.Platform == "" || gen.ChatID == "" {
		return errors.New("generation must have a platform and chat ID")
	}
	if gen.ID == "" {
		gen.ID = uuid.NewString()
	}
	if gen.CreatedAt.IsZero() {
		gen.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving generation", "generation_id", gen.ID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	const insertGeneration = `
        INSERT INTO generations (id, platform, chat_id, requested_by, completion, segment_count, created_at)
        VALUES (:id, :platform, :chat_id, :requested_by, :completion, :segment_count, :created_at);
    `
	if _, err := tx.NamedExecContext(ctx, insertGeneration, gen); err != nil {
		s.logger.ErrorContext(ctx, "Error saving generation", "generation_id", gen.ID, "error", err)
		return fmt.Errorf("failed to save generation %s: %w", gen.ID, err)
	}

	const insertNode = `
        INSERT INTO generation_nodes (generation_id, position, user_id, nickname, content)
        VALUES (:generation_id, :position, :user_id, :nickname, :content);
    `
	for i := range gen.Nodes {
		gen.Nodes[i].GenerationID = gen.ID
		gen.Nodes[i].Position = i
		if _, err := tx.NamedExecContext(ctx, insertNode, gen.Nodes[i]); err != nil {
			s.logger.ErrorContext(ctx, "Error saving generation node", "generation_id", gen.ID, "position", i, "error", err)
			return fmt.Errorf("failed to save node %d of generation %s: %w", i, gen.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "generation_id", gen.ID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Generation saved", "generation_id", gen.ID, "platform", gen.Platform, "nodes", len(gen.Nodes))
	return nil
}

func (s *sqlxStore) CountGenerations(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM generations;`); err != nil {
		return 0, fmt.Errorf("failed to count generations: %w", err)
	}
	return count, nil
}

func (s *sqlxStore) GetGeneration(ctx context.Context, id string) (*Generation, error) {
	if id == "" {
		return nil, errors.New("generation ID cannot be empty")
	}

	var gen Generation
	err := s.db.GetContext(ctx, &gen, `
        SELECT id, platform, chat_id, requested_by, completion, segment_count, created_at
        FROM generations WHERE id = ?;
    `, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get generation %s: %w", id, err)
	}

	err = s.db.SelectContext(ctx, &gen.Nodes, `
        SELECT generation_id, position, user_id, nickname, content
        FROM generation_nodes WHERE generation_id = ? ORDER BY position ASC;
    `, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes of generation %s: %w", id, err)
	}
	return &gen, nil
}

func (s *sqlxStore) PruneGenerations(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	cutoff := before.UTC()
	if _, err := tx.ExecContext(ctx, `
        DELETE FROM generation_nodes
        WHERE generation_id IN (SELECT id FROM generations WHERE created_at < ?);
    `, cutoff); err != nil {
		return 0, fmt.Errorf("failed to prune generation nodes: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE created_at < ?;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune generations: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		s.logger.WarnContext(ctx, "Could not read affected rows after pruning", "error", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "Pruned archived generations", "before", cutoff, "removed", removed)
	return removed, nil
}

// RunSQLMaintenance executes VACUUM and refreshes query planner statistics.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")

	// VACUUM must run outside a transaction
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
