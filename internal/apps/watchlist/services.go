package watchlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/watchlist-backend/internal/authz"
	"gorm.io/gorm"
)

var (
	ErrMovieNotFound = errors.New("movie not found")
	ErrForbidden     = errors.New("you can only access your own movies")
)

type MovieService struct {
	db *gorm.DB
}

func NewMovieService(db *gorm.DB) *MovieService {
	return &MovieService{db: db}
}

func (s *MovieService) Create(ctx context.Context, caller authz.Caller, req CreateMovieRequest) (*MovieResponse, error) {
	movie := Movie{
		OwnerID:     caller.ID,
		Title:       req.Title,
		Director:    req.Director,
		ReleaseYear: req.ReleaseYear,
		Genre:       req.Genre,
		Rating:      req.Rating,
		Notes:       req.Notes,
		WatchedAt:   req.WatchedAt,
	}
	if err := s.db.WithContext(ctx).Create(&movie).Error; err != nil {
		return nil, fmt.Errorf("failed to create movie: %w", err)
	}
	return &MovieResponse{Movie: movie}, nil
}

// List returns the caller's own movies, or every movie with its owner when
// the caller may list across owners.
func (s *MovieService) List(ctx context.Context, caller authz.Caller) ([]MovieResponse, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")

	if !authz.CanListAll(caller) {
		return s.find(query.Where("owner_id = ?", caller.ID), false)
	}
	return s.find(query.Preload("Owner"), true)
}

// ListByOwner returns ownerID's movies if the caller may access them.
func (s *MovieService) ListByOwner(ctx context.Context, caller authz.Caller, ownerID uint) ([]MovieResponse, error) {
	if !authz.CanAccess(caller, ownerID) {
		return nil, ErrForbidden
	}
	query := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC, id DESC")
	return s.find(query, false)
}

func (s *MovieService) Get(ctx context.Context, caller authz.Caller, id uint) (*MovieResponse, error) {
	movie, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	return toResponse(movie, true), nil
}

func (s *MovieService) Update(ctx context.Context, caller authz.Caller, id uint, req UpdateMovieRequest) (*MovieResponse, error) {
	movie, err := s.load(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		movie.Title = *req.Title
	}
	if req.Director != nil {
		movie.Director = *req.Director
	}
	if req.ReleaseYear != nil {
		movie.ReleaseYear = req.ReleaseYear
	}
	if req.Genre != nil {
		movie.Genre = *req.Genre
	}
	if req.Rating != nil {
		movie.Rating = req.Rating
	}
	if req.Notes != nil {
		movie.Notes = *req.Notes
	}
	if req.WatchedAt != nil {
		movie.WatchedAt = req.WatchedAt
	}

	owner := movie.Owner
	movie.Owner = nil
	if err := s.db.WithContext(ctx).Save(movie).Error; err != nil {
		return nil, fmt.Errorf("failed to update movie: %w", err)
	}
	movie.Owner = owner

	return toResponse(movie, true), nil
}

func (s *MovieService) Delete(ctx context.Context, caller authz.Caller, id uint) error {
	movie, err := s.load(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&Movie{}, movie.ID).Error; err != nil {
		return fmt.Errorf("failed to delete movie: %w", err)
	}
	return nil
}

// load fetches a movie and applies the access check every per-record
// operation goes through.
func (s *MovieService) load(ctx context.Context, caller authz.Caller, id uint) (*Movie, error) {
	var movie Movie
	if err := s.db.WithContext(ctx).Preload("Owner").First(&movie, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to load movie: %w", err)
	}
	if !authz.CanAccess(caller, movie.OwnerID) {
		return nil, ErrForbidden
	}
	return &movie, nil
}

func (s *MovieService) find(query *gorm.DB, withOwner bool) ([]MovieResponse, error) {
	var movies []Movie
	if err := query.Find(&movies).Error; err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	out := make([]MovieResponse, 0, len(movies))
	for i := range movies {
		out = append(out, *toResponse(&movies[i], withOwner))
	}
	return out, nil
}

func toResponse(m *Movie, withOwner bool) *MovieResponse {
	resp := &MovieResponse{Movie: *m}
	if withOwner && m.Owner != nil {
		resp.User = &OwnerInfo{ID: m.Owner.ID, Email: m.Owner.Email}
	}
	return resp
}
