package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

// EmbeddingRepository persists the reference embedding snapshot in PostgreSQL
type EmbeddingRepository struct {
	pool *Pool
}

// NewEmbeddingRepository creates a new PostgreSQL embedding repository
func NewEmbeddingRepository(pool *Pool) *EmbeddingRepository {
	return &EmbeddingRepository{pool: pool}
}

// LoadAll retrieves every reference embedding ordered by person ID
func (r *EmbeddingRepository) LoadAll(ctx context.Context) ([]database.StoredEmbedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT person_id, embedding, updated_at
		FROM reference_embeddings
		ORDER BY person_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query reference embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []database.StoredEmbedding
	for rows.Next() {
		var emb database.StoredEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&emb.PersonID, &vec, &emb.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reference embedding: %w", err)
		}
		emb.Vector = vec.Slice()
		embeddings = append(embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference embeddings: %w", err)
	}
	return embeddings, nil
}

// SaveAll replaces the stored snapshot in a single transaction so readers
// never observe a partially written set
func (r *EmbeddingRepository) SaveAll(ctx context.Context, embeddings []database.StoredEmbedding) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM reference_embeddings"); err != nil {
		return fmt.Errorf("clear reference embeddings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reference_embeddings (person_id, embedding, dim, updated_at)
		VALUES ($1, $2::vector, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, emb := range embeddings {
		vec := pgvector.NewVector(emb.Vector)
		if _, err := stmt.ExecContext(ctx, emb.PersonID, vec, len(emb.Vector), emb.UpdatedAt); err != nil {
			return fmt.Errorf("insert reference embedding %s: %w", emb.PersonID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
