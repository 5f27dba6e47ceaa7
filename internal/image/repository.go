package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateKey is returned when an insert collides on filename_stored.
var ErrDuplicateKey = errors.New("duplicate storage key")

// Repository handles all image metadata database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const imageColumns = `id, filename_original, filename_stored, content_type, size,
	upload_date, user_id, diagnosis_id, status`

// Insert persists a new image record.
func (r *Repository) Insert(ctx context.Context, img *Image) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO images (id, filename_original, filename_stored, content_type,
		                     size, upload_date, user_id, diagnosis_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		img.ID, img.FilenameOriginal, img.FilenameStored, img.ContentType,
		img.Size, img.UploadDate, img.UserID, img.DiagnosisID, img.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

// GetByID fetches an image record by its UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Image, error) {
	img := &Image{}
	err := r.db.QueryRow(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = $1`, id,
	).Scan(&img.ID, &img.FilenameOriginal, &img.FilenameStored, &img.ContentType,
		&img.Size, &img.UploadDate, &img.UserID, &img.DiagnosisID, &img.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image by id: %w", err)
	}
	return img, nil
}

// ListByOwner fetches all records owned by the given user, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*Image, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+imageColumns+` FROM images WHERE user_id = $1 ORDER BY upload_date DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list images by owner: %w", err)
	}
	defer rows.Close()

	images := []*Image{}
	for rows.Next() {
		img := &Image{}
		if err := rows.Scan(&img.ID, &img.FilenameOriginal, &img.FilenameStored,
			&img.ContentType, &img.Size, &img.UploadDate, &img.UserID,
			&img.DiagnosisID, &img.Status); err != nil {
			return nil, fmt.Errorf("scan image row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image rows: %w", err)
	}
	return images, nil
}

// DeleteByID removes a record by its UUID. Returns ErrNotFound when no row
// was deleted.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation checks whether an error is a PostgreSQL unique_violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
