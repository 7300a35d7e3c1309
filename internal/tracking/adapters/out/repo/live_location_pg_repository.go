package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brillprime/internal/shared/utils"
	"brillprime/internal/tracking/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LiveLocationPgRepository implements out.LiveLocationStore on PostgreSQL.
type LiveLocationPgRepository struct {
	db *pgxpool.Pool
}

func NewLiveLocationPgRepository(db *pgxpool.Pool) *LiveLocationPgRepository {
	return &LiveLocationPgRepository{db: db}
}

// Upsert keeps one row per user; the last write wins.
func (r *LiveLocationPgRepository) Upsert(ctx context.Context, userID string, pos domain.Position) error {
	query := `
		INSERT INTO live_locations (user_id, latitude, longitude, accuracy_m, recorded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id) DO UPDATE
		SET latitude    = EXCLUDED.latitude,
		    longitude   = EXCLUDED.longitude,
		    accuracy_m  = EXCLUDED.accuracy_m,
		    recorded_at = EXCLUDED.recorded_at,
		    updated_at  = now()
	`

	_, err := r.db.Exec(ctx, query,
		userID,
		pos.Latitude,
		pos.Longitude,
		pos.Accuracy,
		pos.Time(),
	)
	if err != nil {
		return fmt.Errorf("upsert live location: %w", err)
	}
	return nil
}

// AppendHistory inserts the whole batch in one round trip.
func (r *LiveLocationPgRepository) AppendHistory(ctx context.Context, userID string, batch []domain.Position) error {
	if len(batch) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, pos := range batch {
		b.Queue(`
			INSERT INTO location_history (id, user_id, latitude, longitude, accuracy_m, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, utils.NewUUID(), userID, pos.Latitude, pos.Longitude, pos.Accuracy, pos.Time())
	}

	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert location history: %w", err)
	}
	return nil
}

func (r *LiveLocationPgRepository) Get(ctx context.Context, userID string) (domain.Position, error) {
	query := `
		SELECT latitude, longitude, accuracy_m, recorded_at
		FROM live_locations
		WHERE user_id = $1
	`

	var (
		pos        domain.Position
		recordedAt time.Time
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&pos.Latitude,
		&pos.Longitude,
		&pos.Accuracy,
		&recordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, domain.ErrLocationNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("query live location: %w", err)
	}

	pos.Timestamp = recordedAt.UnixMilli()
	return pos, nil
}

// History returns the newest limit positions, newest first.
func (r *LiveLocationPgRepository) History(ctx context.Context, userID string, limit int) ([]domain.Position, error) {
	query := `
		SELECT latitude, longitude, accuracy_m, recorded_at
		FROM location_history
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query location history: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Position, 0, limit)
	for rows.Next() {
		var (
			pos        domain.Position
			recordedAt time.Time
		)
		if err := rows.Scan(&pos.Latitude, &pos.Longitude, &pos.Accuracy, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		pos.Timestamp = recordedAt.UnixMilli()
		items = append(items, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return items, nil
}
