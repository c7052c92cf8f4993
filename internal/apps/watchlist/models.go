package watchlist

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/models"
)

type Movie struct {
	ID          uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID     uint         `gorm:"not null;index" json:"owner_id"`
	Owner       *models.User `gorm:"foreignKey:OwnerID" json:"-"`
	Title       string       `gorm:"not null;size:255" json:"title"`
	Director    string       `gorm:"size:255" json:"director,omitempty"`
	ReleaseYear *int         `json:"release_year,omitempty"`
	Genre       string       `gorm:"size:100" json:"genre,omitempty"`
	Rating      *float64     `json:"rating,omitempty"`
	Notes       string       `gorm:"type:text" json:"notes,omitempty"`
	WatchedAt   *time.Time   `json:"watched_at,omitempty"`
	CreatedAt   time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// --- DTOs ---

type CreateMovieRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Director    string     `json:"director" validate:"max=255"`
	ReleaseYear *int       `json:"release_year" validate:"omitempty,gte=1870,lte=2200"`
	Genre       string     `json:"genre" validate:"max=100"`
	Rating      *float64   `json:"rating" validate:"omitempty,gte=1,lte=10"`
	Notes       string     `json:"notes" validate:"max=5000"`
	WatchedAt   *time.Time `json:"watched_at"`
}

type UpdateMovieRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Director    *string    `json:"director" validate:"omitempty,max=255"`
	ReleaseYear *int       `json:"release_year" validate:"omitempty,gte=1870,lte=2200"`
	Genre       *string    `json:"genre" validate:"omitempty,max=100"`
	Rating      *float64   `json:"rating" validate:"omitempty,gte=1,lte=10"`
	Notes       *string    `json:"notes" validate:"omitempty,max=5000"`
	WatchedAt   *time.Time `json:"watched_at"`
}

type OwnerInfo struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type MovieResponse struct {
	Movie
	User *OwnerInfo `json:"user,omitempty"`
}

type MovieListResponse struct {
	Movies []MovieResponse `json:"movies"`
	Total  int             `json:"total"`
}

type DeleteMovieResponse struct {
	Message string `json:"message"`
}
