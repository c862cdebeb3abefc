package types

import "time"

// Photo is an uploaded image with its gallery metadata.
type Photo struct {
	// ID is the unique identifier of the photo.
	ID int `json:"id" db:"id"`

	// Title is the caption shown in the gallery.
	Title string `json:"title" db:"title"`

	// Description is an optional longer text.
	Description string `json:"description" db:"description"`

	// Category groups photos in the gallery.
	Category string `json:"category" db:"category"`

	// ImageURL is the public path of the image, e.g. "/uploads/photos/<key>.jpg".
	ImageURL string `json:"imageUrl" db:"image_url"`

	// ObjectKey locates the image in object storage.
	ObjectKey string `json:"-" db:"object_key"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
