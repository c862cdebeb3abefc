package services

import (
	"context"
	"strings"

	"github.com/portfolio-cms/apiserver/types"
)

// BlogRepository defines persistence operations for blog posts.
type BlogRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Blog, int, error)
	Get(ctx context.Context, id int) (types.Blog, error)
	Create(ctx context.Context, blog types.Blog) (types.Blog, error)
	Update(ctx context.Context, blog types.Blog) (types.Blog, error)
	Delete(ctx context.Context, id int) error
}

// BlogService encapsulates blog use-cases.
type BlogService struct {
	repo     BlogRepository
	notifier *Notifier
}

func NewBlogService(repo BlogRepository, notifier *Notifier) *BlogService {
	return &BlogService{repo: repo, notifier: notifier}
}

// BlogPatch holds optional blog fields; nil fields are left unchanged.
type BlogPatch struct {
	Title   *string
	Content *string
	Author  *string
}

func (s *BlogService) List(ctx context.Context, offset, limit int) ([]types.Blog, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *BlogService) Get(ctx context.Context, id int) (types.Blog, error) {
	return s.repo.Get(ctx, id)
}

func (s *BlogService) Create(ctx context.Context, blog types.Blog) (types.Blog, error) {
	blog.Title = strings.TrimSpace(blog.Title)
	blog.Author = strings.TrimSpace(blog.Author)
	if blog.Title == "" {
		return types.Blog{}, invalid("title is required")
	}
	if strings.TrimSpace(blog.Content) == "" {
		return types.Blog{}, invalid("content is required")
	}
	if blog.Author == "" {
		blog.Author = types.DefaultBlogAuthor
	}

	created, err := s.repo.Create(ctx, blog)
	if err != nil {
		return types.Blog{}, err
	}
	s.notifier.Notify(ctx, types.EventBlogCreated, created.ID)
	return created, nil
}

func (s *BlogService) Update(ctx context.Context, id int, patch BlogPatch) (types.Blog, error) {
	blog, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Blog{}, err
	}

	if patch.Title != nil {
		blog.Title = strings.TrimSpace(*patch.Title)
		if blog.Title == "" {
			return types.Blog{}, invalid("title cannot be empty")
		}
	}
	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return types.Blog{}, invalid("content cannot be empty")
		}
		blog.Content = *patch.Content
	}
	if patch.Author != nil {
		blog.Author = strings.TrimSpace(*patch.Author)
		if blog.Author == "" {
			blog.Author = types.DefaultBlogAuthor
		}
	}

	updated, err := s.repo.Update(ctx, blog)
	if err != nil {
		return types.Blog{}, err
	}
	s.notifier.Notify(ctx, types.EventBlogUpdated, updated.ID)
	return updated, nil
}

func (s *BlogService) Delete(ctx context.Context, id int) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.notifier.Notify(ctx, types.EventBlogDeleted, id)
	return nil
}
