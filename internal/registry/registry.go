package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/fineme-ai/fineme/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool the repository needs; it also matches
// pgxmock for tests
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// IdentityRepository is the durable store of enrolled identities, keyed by
// the derived identity key
type IdentityRepository struct {
	pool PgxPool
}

func NewIdentityRepository(pool PgxPool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Upsert inserts the identity or, when the key already exists, replaces its
// display name, reference image and embedding in place. A duplicate key is
// never an error: re-enrollment is defined as replacement.
func (r *IdentityRepository) Upsert(ctx context.Context, identity *domain.Identity) error {
	query := `
		INSERT INTO identities (key, display_name, reference_image, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (key) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			reference_image = EXCLUDED.reference_image,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		identity.Key,
		identity.DisplayName,
		identity.ReferenceImage,
		toVector(identity.Embedding),
	).Scan(&identity.CreatedAt, &identity.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert identity %q: %w", identity.Key, err)
	}

	return nil
}

// All returns a snapshot of every enrolled identity. Order is unspecified.
func (r *IdentityRepository) All(ctx context.Context) ([]domain.Identity, error) {
	query := `
		SELECT key, display_name, reference_image, embedding, created_at, updated_at
		FROM identities
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("list identities: %w", err)
		}
		identities = append(identities, *identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	return identities, nil
}

// GetByKey looks up a single identity. Returns domain.ErrIdentityNotFound
// when the key is not enrolled.
func (r *IdentityRepository) GetByKey(ctx context.Context, key string) (*domain.Identity, error) {
	query := `
		SELECT key, display_name, reference_image, embedding, created_at, updated_at
		FROM identities
		WHERE key = $1
	`

	identity, err := scanIdentity(r.pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity %q: %w", key, err)
	}

	return identity, nil
}

// Ping reports whether the backing store is reachable
func (r *IdentityRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

type row interface {
	Scan(dest ...any) error
}

func scanIdentity(rw row) (*domain.Identity, error) {
	var identity domain.Identity
	var embedding *pgvector.Vector

	err := rw.Scan(
		&identity.Key,
		&identity.DisplayName,
		&identity.ReferenceImage,
		&embedding,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if embedding != nil && embedding.Slice() != nil {
		identity.Embedding = make([]float64, len(embedding.Slice()))
		for i, v := range embedding.Slice() {
			identity.Embedding[i] = float64(v)
		}
	}

	return &identity, nil
}

// toVector converts a float64 embedding to a pgvector value; nil embeddings
// (remote strategy, the collection owns the vector) map to SQL NULL
func toVector(embedding []float64) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}

	floats := make([]float32, len(embedding))
	for i, v := range embedding {
		floats[i] = float32(v)
	}
	vec := pgvector.NewVector(floats)
	return &vec
}
