package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/portfolio-cms/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var blogColumns = []string{"id", "title", "content", "author", "created_at", "updated_at", "count"}

func TestBlogRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBlogRepository(db, time.Second)

	now := time.Now()
	mock.ExpectQuery(`(?s)SELECT\s+.*COUNT\(\*\)\s+OVER\(\)\s+FROM\s+blogs\s+ORDER\s+BY\s+created_at\s+DESC.*OFFSET\s+\$1\s+LIMIT\s+\$2`).
		WithArgs(0, nil).
		WillReturnRows(sqlmock.NewRows(blogColumns).
			AddRow(2, "second", "b", "Admin", now, now, 2).
			AddRow(1, "first", "a", "Admin", now, now, 2))

	blogs, total, err := repo.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, blogs, 2)
	assert.Equal(t, "second", blogs[0].Title)
}

func TestBlogRepository_ListPaged(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBlogRepository(db, time.Second)

	now := time.Now()
	mock.ExpectQuery(`OFFSET\s+\$1\s+LIMIT\s+\$2`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows(blogColumns).
			AddRow(1, "first", "a", "Admin", now, now, 3))

	blogs, total, err := repo.List(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, blogs, 1)
}

func TestBlogRepository_ListPastEnd(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBlogRepository(db, time.Second)

	mock.ExpectQuery(`OFFSET\s+\$1\s+LIMIT\s+\$2`).
		WithArgs(20, 10).
		WillReturnRows(sqlmock.NewRows(blogColumns))
	mock.ExpectQuery(`SELECT\s+COUNT\(\*\)\s+FROM\s+blogs$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	blogs, total, err := repo.List(context.Background(), 20, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.NotNil(t, blogs)
	assert.Empty(t, blogs)
}

func TestBlogRepository_ListEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBlogRepository(db, time.Second)

	// No second query: an empty first page means an empty table.
	mock.ExpectQuery(`OFFSET\s+\$1\s+LIMIT\s+\$2`).
		WithArgs(0, 10).
		WillReturnRows(sqlmock.NewRows(blogColumns))

	blogs, total, err := repo.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, blogs)
}

func TestPhotoRepository_List(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPhotoRepository(db, time.Second)

	now := time.Now()
	mock.ExpectQuery(`(?s)COUNT\(\*\)\s+OVER\(\)\s+FROM\s+photos.*OFFSET\s+\$1\s+LIMIT\s+\$2`).
		WithArgs(0, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "category", "image_url", "object_key", "created_at", "updated_at", "count"}).
			AddRow(9, "sunset", "", "travel", "/uploads/photos/a.png", "photos/a.png", now, now, 5))

	photos, total, err := repo.List(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, photos, 1)
	assert.Equal(t, "photos/a.png", photos[0].ObjectKey)
}

func TestBlogRepository_CreateGetUpdateDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewBlogRepository(db, time.Second)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT\s+INTO\s+blogs`).
		WithArgs("t", "c", "Admin", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	blog, err := repo.Create(ctx, types.Blog{Title: "t", Content: "c", Author: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, 5, blog.ID)

	mock.ExpectQuery(`FROM\s+blogs\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(6).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(ctx, 6)
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(`UPDATE\s+blogs`).
		WithArgs("t2", "c", "Admin", sqlmock.AnyArg(), 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	blog.Title = "t2"
	_, err = repo.Update(ctx, blog)
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE\s+blogs`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.Update(ctx, types.Blog{ID: 404})
	assert.ErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(`DELETE\s+FROM\s+blogs\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, 5))

	mock.ExpectExec(`DELETE\s+FROM\s+blogs`).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(ctx, 5), ErrNotFound)
}

func TestPhotoRepository_CreateAndGet(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPhotoRepository(db, time.Second)
	ctx := context.Background()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+photos\s*\(title,\s*description,\s*category,\s*image_url,\s*object_key`).
		WithArgs("sunset", "", "nature", "/uploads/photos/a.jpg", "photos/a.jpg", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	photo, err := repo.Create(ctx, types.Photo{
		Title:     "sunset",
		Category:  "nature",
		ImageURL:  "/uploads/photos/a.jpg",
		ObjectKey: "photos/a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, photo.ID)

	now := time.Now()
	mock.ExpectQuery(`FROM\s+photos\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "description", "category", "image_url", "object_key", "created_at", "updated_at"}).
			AddRow(1, "sunset", "", "nature", "/uploads/photos/a.jpg", "photos/a.jpg", now, now))
	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "photos/a.jpg", got.ObjectKey)
}

func TestPhotoRepository_DeleteNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPhotoRepository(db, time.Second)

	mock.ExpectExec(`DELETE\s+FROM\s+photos`).
		WithArgs(9).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 9), ErrNotFound)
}
