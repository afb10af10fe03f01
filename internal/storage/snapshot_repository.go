package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lp-portfolio/internal/models"
)

// SnapshotRepository stores portfolio snapshots in Postgres
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Create inserts a snapshot; metrics and positions are stored as jsonb
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	metricsJSON, err := json.Marshal(snapshot.Metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}
	positionsJSON, err := json.Marshal(snapshot.Positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}

	query := `
		INSERT INTO portfolio_snapshots (
			id,
			address,
			run_id,
			metrics,
			positions,
			position_count,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		snapshot.ID,
		snapshot.Address,
		snapshot.RunID,
		metricsJSON,
		positionsJSON,
		snapshot.PositionCount,
		snapshot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// ListByAddress returns the newest snapshots of an address
func (r *SnapshotRepository) ListByAddress(ctx context.Context, address string, limit int) ([]*models.PortfolioSnapshot, error) {
	query := `
		SELECT id, address, run_id, metrics, positions, position_count, created_at
		FROM portfolio_snapshots
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []*models.PortfolioSnapshot{}
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (*models.PortfolioSnapshot, error) {
	var s models.PortfolioSnapshot
	var metricsJSON, positionsJSON []byte

	if err := row.Scan(
		&s.ID,
		&s.Address,
		&s.RunID,
		&metricsJSON,
		&positionsJSON,
		&s.PositionCount,
		&s.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	if err := json.Unmarshal(metricsJSON, &s.Metrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
	}
	if err := json.Unmarshal(positionsJSON, &s.Positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal positions: %w", err)
	}
	return &s, nil
}
