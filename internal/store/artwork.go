package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Artwork is an exported canvas.
type Artwork struct {
	ID        string
	Width     int
	Height    int
	PNG       []byte
	CreatedAt time.Time
}

// ArtworkRepository provides CRUD operations for artworks.
type ArtworkRepository struct {
	db *sql.DB
}

// Artworks returns the artwork repository for this store.
func (s *Store) Artworks() *ArtworkRepository {
	return &ArtworkRepository{db: s.db}
}

// Create inserts a new artwork. An empty ID is filled with a new UUID.
func (r *ArtworkRepository) Create(a *Artwork) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now()

	_, err := r.db.Exec(
		`INSERT INTO artworks (id, width, height, png, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Width, a.Height, a.PNG, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an artwork with its image data.
func (r *ArtworkRepository) GetByID(id string) (*Artwork, error) {
	a := &Artwork{}

	err := r.db.QueryRow(
		`SELECT id, width, height, png, created_at FROM artworks WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.Width, &a.Height, &a.PNG, &a.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return a, nil
}

// List returns all artworks, newest first, without their image data.
func (r *ArtworkRepository) List() ([]*Artwork, error) {
	rows, err := r.db.Query(
		`SELECT id, width, height, created_at FROM artworks ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artworks []*Artwork
	for rows.Next() {
		a := &Artwork{}
		if err := rows.Scan(&a.ID, &a.Width, &a.Height, &a.CreatedAt); err != nil {
			return nil, err
		}
		artworks = append(artworks, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return artworks, nil
}

// Delete removes an artwork by its ID.
func (r *ArtworkRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM artworks WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
