package types

import "time"

// EventType names a change to site content.
type EventType string

const (
	EventBlogCreated  EventType = "blog.created"
	EventBlogUpdated  EventType = "blog.updated"
	EventBlogDeleted  EventType = "blog.deleted"
	EventPhotoCreated EventType = "photo.created"
	EventPhotoUpdated EventType = "photo.updated"
	EventPhotoDeleted EventType = "photo.deleted"
)

// ContentEvent is published whenever a blog post or photo changes.
type ContentEvent struct {
	Type       EventType `json:"type"`
	ResourceID int       `json:"resourceId"`
	OccurredAt time.Time `json:"occurredAt"`
}
