package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/portfolio-cms/apiserver/types"
)

// BlogRepository handles persistence for blog posts.
type BlogRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewBlogRepository(db *sql.DB, timeout time.Duration) *BlogRepository {
	return &BlogRepository{db: db, timeout: timeout}
}

// List returns posts newest first. A non-positive limit returns every post
// after offset.
func (r *BlogRepository) List(ctx context.Context, offset, limit int) ([]types.Blog, int, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if offset < 0 {
		offset = 0
	}

	// The total rides on every row so it always matches the page.
	const listQuery = `
		SELECT id, title, content, author, created_at, updated_at, COUNT(*) OVER()
		FROM blogs
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limitArg(limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var total int
	blogs := make([]types.Blog, 0)
	for rows.Next() {
		var blog types.Blog
		if err := rows.Scan(
			&blog.ID,
			&blog.Title,
			&blog.Content,
			&blog.Author,
			&blog.CreatedAt,
			&blog.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		blogs = append(blogs, blog)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// A page past the end carries no rows to read the total from.
	if len(blogs) == 0 && offset > 0 {
		const countQuery = `SELECT COUNT(*) FROM blogs`
		if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
			return nil, 0, err
		}
	}

	return blogs, total, nil
}

func (r *BlogRepository) Get(ctx context.Context, id int) (types.Blog, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		SELECT id, title, content, author, created_at, updated_at
		FROM blogs
		WHERE id = $1`
	var blog types.Blog
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&blog.ID,
		&blog.Title,
		&blog.Content,
		&blog.Author,
		&blog.CreatedAt,
		&blog.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Blog{}, ErrNotFound
		}
		return types.Blog{}, err
	}
	return blog, nil
}

func (r *BlogRepository) Create(ctx context.Context, blog types.Blog) (types.Blog, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	now := time.Now()
	blog.CreatedAt = now
	blog.UpdatedAt = now

	const query = `
		INSERT INTO blogs (title, content, author, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		blog.Title,
		blog.Content,
		blog.Author,
		blog.CreatedAt,
		blog.UpdatedAt,
	).Scan(&blog.ID); err != nil {
		return types.Blog{}, err
	}
	return blog, nil
}

func (r *BlogRepository) Update(ctx context.Context, blog types.Blog) (types.Blog, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	blog.UpdatedAt = time.Now()

	const query = `
		UPDATE blogs
		SET title = $1,
			content = $2,
			author = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		blog.Title,
		blog.Content,
		blog.Author,
		blog.UpdatedAt,
		blog.ID,
	)
	if err != nil {
		return types.Blog{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Blog{}, err
	}
	if affected == 0 {
		return types.Blog{}, ErrNotFound
	}
	return blog, nil
}

func (r *BlogRepository) Delete(ctx context.Context, id int) error {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	const query = `DELETE FROM blogs WHERE id = $1`
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
