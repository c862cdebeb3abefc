package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/portfolio-cms/apiserver/internal/services"
	"github.com/portfolio-cms/apiserver/types"
)

// BlogService is the blog behaviour the handlers depend on.
type BlogService interface {
	List(ctx context.Context, offset, limit int) ([]types.Blog, int, error)
	Get(ctx context.Context, id int) (types.Blog, error)
	Create(ctx context.Context, blog types.Blog) (types.Blog, error)
	Update(ctx context.Context, id int, patch services.BlogPatch) (types.Blog, error)
	Delete(ctx context.Context, id int) error
}

// BlogHandler provides HTTP handlers for blog posts.
type BlogHandler struct {
	blogService BlogService
}

func NewBlogHandler(blogService BlogService) *BlogHandler {
	return &BlogHandler{blogService: blogService}
}

// BlogRouter registers blog routes on the given router.
func BlogRouter(r chi.Router, blogService BlogService) {
	handler := NewBlogHandler(blogService)

	r.Get("/", handler.ListBlogs)
	r.Post("/", handler.CreateBlog)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", handler.GetBlog)
		r.Put("/", handler.UpdateBlog)
		r.Delete("/", handler.DeleteBlog)
	})
}

func (h *BlogHandler) ListBlogs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blogs, total, err := h.blogService.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "blog not found", "failed to list blogs")
		return
	}

	setTotalCount(w, total)
	writeJSON(w, http.StatusOK, blogs)
}

func (h *BlogHandler) GetBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blog, err := h.blogService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "blog not found", "failed to fetch blog")
		return
	}

	writeJSON(w, http.StatusOK, blog)
}

func (h *BlogHandler) CreateBlog(w http.ResponseWriter, r *http.Request) {
	var req BlogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	blog := types.Blog{}
	if req.Title != nil {
		blog.Title = *req.Title
	}
	if req.Content != nil {
		blog.Content = *req.Content
	}
	if req.Author != nil {
		blog.Author = *req.Author
	}

	created, err := h.blogService.Create(r.Context(), blog)
	if err != nil {
		writeServiceError(w, r, err, "blog not found", "failed to create blog")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *BlogHandler) UpdateBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req BlogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.blogService.Update(r.Context(), id, services.BlogPatch{
		Title:   req.Title,
		Content: req.Content,
		Author:  req.Author,
	})
	if err != nil {
		writeServiceError(w, r, err, "blog not found", "failed to update blog")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *BlogHandler) DeleteBlog(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.blogService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "blog not found", "failed to delete blog")
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "blog deleted"})
}

// BlogRequest is the JSON body for creating or updating a post. Omitted
// fields are left unchanged on update.
type BlogRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Author  *string `json:"author"`
}
