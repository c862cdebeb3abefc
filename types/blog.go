package types

import "time"

// DefaultBlogAuthor is used when a blog post is created without an author.
const DefaultBlogAuthor = "Admin"

// Blog is a published blog post.
type Blog struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	Author    string    `json:"author" db:"author"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
