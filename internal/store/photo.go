package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/portfolio-cms/apiserver/types"
)

// PhotoRepository handles persistence for photos.
type PhotoRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPhotoRepository(db *sql.DB, timeout time.Duration) *PhotoRepository {
	return &PhotoRepository{db: db, timeout: timeout}
}

func (r *PhotoRepository) List(ctx context.Context, offset, limit int) ([]types.Photo, int, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if offset < 0 {
		offset = 0
	}

	// The total rides on every row so it always matches the page.
	const listQuery = `
		SELECT id, title, description, category, image_url, object_key, created_at, updated_at, COUNT(*) OVER()
		FROM photos
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limitArg(limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var total int
	photos := make([]types.Photo, 0)
	for rows.Next() {
		var photo types.Photo
		if err := rows.Scan(
			&photo.ID,
			&photo.Title,
			&photo.Description,
			&photo.Category,
			&photo.ImageURL,
			&photo.ObjectKey,
			&photo.CreatedAt,
			&photo.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		photos = append(photos, photo)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// A page past the end carries no rows to read the total from.
	if len(photos) == 0 && offset > 0 {
		const countQuery = `SELECT COUNT(*) FROM photos`
		if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	return photos, total, nil
}

func (r *PhotoRepository) Get(ctx context.Context, id int) (types.Photo, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT id, title, description, category, image_url, object_key, created_at, updated_at
		FROM photos
		WHERE id = $1`
	var photo types.Photo
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&photo.ID,
		&photo.Title,
		&photo.Description,
		&photo.Category,
		&photo.ImageURL,
		&photo.ObjectKey,
		&photo.CreatedAt,
		&photo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Photo{}, ErrNotFound
		}
		return types.Photo{}, err
	}
	return photo, nil
}

func (r *PhotoRepository) Create(ctx context.Context, photo types.Photo) (types.Photo, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	photo.CreatedAt = now
	photo.UpdatedAt = now

	const query = `
		INSERT INTO photos (title, description, category, image_url, object_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		photo.Title,
		photo.Description,
		photo.Category,
		photo.ImageURL,
		photo.ObjectKey,
		photo.CreatedAt,
		photo.UpdatedAt,
	).Scan(&photo.ID); err != nil {
		return types.Photo{}, err
	}
	return photo, nil
}

func (r *PhotoRepository) Update(ctx context.Context, photo types.Photo) (types.Photo, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	photo.UpdatedAt = time.Now()

	const query = `
		UPDATE photos
		SET title = $1,
			description = $2,
			category = $3,
			image_url = $4,
			object_key = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		photo.Title,
		photo.Description,
		photo.Category,
		photo.ImageURL,
		photo.ObjectKey,
		photo.UpdatedAt,
		photo.ID,
	)
	if err != nil {
		return types.Photo{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Photo{}, err
	}
	if affected == 0 {
		return types.Photo{}, ErrNotFound
	}
	return photo, nil
}

func (r *PhotoRepository) Delete(ctx context.Context, id int) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `DELETE FROM photos WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
