package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
)

// DirectoryRepository provides read access to persons, gates and access tokens
type DirectoryRepository struct {
	pool *Pool
}

// NewDirectoryRepository creates a new PostgreSQL directory repository
func NewDirectoryRepository(pool *Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

// FindActiveToken returns the active token with exactly this value, nil if not found
func (r *DirectoryRepository) FindActiveToken(ctx context.Context, value string) (*database.AccessToken, error) {
	query := `
		SELECT token_value, person_id, valid_until, active
		FROM access_tokens
		WHERE token_value = $1 AND active = TRUE
	`

	var tok database.AccessToken
	err := r.pool.QueryRow(ctx, query, value).Scan(&tok.Value, &tok.PersonID, &tok.ValidUntil, &tok.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query access token: %w", err)
	}
	return &tok, nil
}

// GetPerson retrieves a person by ID, returns nil if not found
func (r *DirectoryRepository) GetPerson(ctx context.Context, id string) (*database.Person, error) {
	query := `
		SELECT id, first_name, last_name, position, email, active, created_at
		FROM persons
		WHERE id = $1
	`

	var p database.Person
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.Position, &p.Email, &p.Active, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	return &p, nil
}

// ListPersons returns persons ordered by ID
func (r *DirectoryRepository) ListPersons(ctx context.Context, activeOnly bool) ([]database.Person, error) {
	query := `
		SELECT id, first_name, last_name, position, email, active, created_at
		FROM persons
		WHERE active OR NOT $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query persons: %w", err)
	}
	defer rows.Close()

	var persons []database.Person
	for rows.Next() {
		var p database.Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Position, &p.Email, &p.Active, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate persons: %w", err)
	}
	return persons, nil
}

// GetGate retrieves a gate by ID, returns nil if not found
func (r *DirectoryRepository) GetGate(ctx context.Context, id string) (*database.Gate, error) {
	var g database.Gate
	err := r.pool.QueryRow(ctx, "SELECT id, name, location, active FROM gates WHERE id = $1", id).
		Scan(&g.ID, &g.Name, &g.Location, &g.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query gate: %w", err)
	}
	return &g, nil
}

// SavePerson inserts or updates a person
func (r *DirectoryRepository) SavePerson(ctx context.Context, p database.Person) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO persons (id, first_name, last_name, position, email, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			position = EXCLUDED.position,
			email = EXCLUDED.email,
			active = EXCLUDED.active
	`, p.ID, p.FirstName, p.LastName, p.Position, p.Email, p.Active)
	if err != nil {
		return fmt.Errorf("save person %s: %w", p.ID, err)
	}
	return nil
}

// SaveGate inserts or updates a gate
func (r *DirectoryRepository) SaveGate(ctx context.Context, g database.Gate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO gates (id, name, location, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			active = EXCLUDED.active
	`, g.ID, g.Name, g.Location, g.Active)
	if err != nil {
		return fmt.Errorf("save gate %s: %w", g.ID, err)
	}
	return nil
}

// SaveToken inserts or updates an access token
func (r *DirectoryRepository) SaveToken(ctx context.Context, tok database.AccessToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_tokens (token_value, person_id, valid_until, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_value) DO UPDATE SET
			person_id = EXCLUDED.person_id,
			valid_until = EXCLUDED.valid_until,
			active = EXCLUDED.active
	`, tok.Value, tok.PersonID, tok.ValidUntil.Format("2006-01-02"), tok.Active)
	if err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	return nil
}

// AddReferenceImage records the stored path of a new enrollment image
func (r *DirectoryRepository) AddReferenceImage(ctx context.Context, personID, path string) (*database.ReferenceImage, error) {
	img := database.ReferenceImage{PersonID: personID, Path: path, Active: true}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reference_images (person_id, path)
		VALUES ($1, $2)
		RETURNING id, added_at
	`, personID, path).Scan(&img.ID, &img.AddedAt)
	if err != nil {
		return nil, fmt.Errorf("insert reference image: %w", err)
	}
	return &img, nil
}
