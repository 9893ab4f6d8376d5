// README: Rider store; profiles in PostgreSQL, liveness mirrored into Redis sets.
package rider

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"boda/internal/types"
)

const (
	onlineKey     = "riders:online"
	onlineZoneKey = "riders:online:zone:"
)

type Store struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func NewStore(db *pgxpool.Pool, redis *redis.Client) *Store {
	return &Store{db: db, redis: redis}
}

func (s *Store) Create(ctx context.Context, r *Rider) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO riders (id, name, phone, zone, presence, deliveries, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(r.ID), r.Name, r.Phone, r.Zone, string(r.Presence), r.Deliveries, r.Rating, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Rider, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, phone, zone, presence, deliveries, rating, created_at, updated_at
		FROM riders WHERE id = $1`, string(id),
	)
	var r Rider
	var zone sql.NullString
	err := row.Scan(&r.ID, &r.Name, &r.Phone, &zone, &r.Presence, &r.Deliveries, &r.Rating, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Zone = zone.String
	return &r, nil
}

// SetPresence updates the profile row and mirrors the flip into the Redis
// online sets the dispatcher reads.
func (s *Store) SetPresence(ctx context.Context, id types.ID, p Presence) error {
	row := s.db.QueryRow(ctx, `
		UPDATE riders SET presence = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING COALESCE(zone, '')`,
		string(p), string(id),
	)
	var zone string
	err := row.Scan(&zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	pipe := s.redis.Pipeline()
	if p == PresenceOnline {
		pipe.SAdd(ctx, onlineKey, string(id))
		if zone != "" {
			pipe.SAdd(ctx, onlineZoneKey+zone, string(id))
		}
	} else {
		pipe.SRem(ctx, onlineKey, string(id))
		if zone != "" {
			pipe.SRem(ctx, onlineZoneKey+zone, string(id))
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

// ListOnline returns online riders, zone-scoped when zone is non-empty.
// Membership comes from the Redis sets; profiles are loaded from Postgres
// with a deterministic order (fewest lifetime deliveries, oldest update,
// then id) so repeated candidate runs are reproducible.
func (s *Store) ListOnline(ctx context.Context, zone string) ([]Rider, error) {
	key := onlineKey
	if zone != "" {
		key = onlineZoneKey + zone
	}
	ids, err := s.redis.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, zone, presence, deliveries, rating, created_at, updated_at
		FROM riders
		WHERE id = ANY($1) AND presence = 'online'
		ORDER BY deliveries, updated_at, id`, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Rider
	for rows.Next() {
		var r Rider
		var z sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Phone, &z, &r.Presence, &r.Deliveries, &r.Rating, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Zone = z.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// IncrementDeliveries bumps the cumulative counter on acceptance.
func (s *Store) IncrementDeliveries(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE riders SET deliveries = deliveries + 1, updated_at = NOW() WHERE id = $1`,
		string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
