// Package services – MovieInfoService
//
// This file implements MovieInfoService, a stateless façade over the
// movie-info storage. It adds no business rules: every operation is a single
// pass-through to the repository, wrapped in an OpenTelemetry span. The one
// translation it performs is turning the repository's not-found error into
// ErrMovieInfoNotFound so handlers can treat absence uniformly.
package services

import (
	"context"
	"errors"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-movie-info/internal/domain"
)

const tracerName = "services/MovieInfoService"

// MovieInfoRepo defines the storage contract required by MovieInfoService.
type MovieInfoRepo interface {
	// Save upserts m by id, generating an id when it is empty.
	Save(ctx context.Context, db *gorm.DB, m *domain.MovieInfo) (*domain.MovieInfo, error)

	// SaveAll upserts a batch atomically.
	SaveAll(ctx context.Context, db *gorm.DB, ms []domain.MovieInfo) ([]domain.MovieInfo, error)

	// FindAll returns a cursor over the whole collection.
	FindAll(ctx context.Context, db *gorm.DB) iter.Seq2[domain.MovieInfo, error]

	// FindByID returns the record with the given id or a not-found error.
	FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.MovieInfo, error)

	// DeleteByID removes the record if present.
	DeleteByID(ctx context.Context, db *gorm.DB, id string) error

	// DeleteAll empties the collection.
	DeleteAll(ctx context.Context, db *gorm.DB) error

	// Stats returns the record count and the latest update time.
	Stats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)
}

// MovieInfoService exposes create, list, get and delete over movie-info
// records. It holds no cached or derived state.
type MovieInfoService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the storage collaborator.
	Repo MovieInfoRepo
}

// NewMovieInfoService constructs a MovieInfoService over db and r.
func NewMovieInfoService(db *gorm.DB, r MovieInfoRepo) *MovieInfoService {
	return &MovieInfoService{DB: db, Repo: r}
}

// Create persists m and returns it with its assigned id. No validation is
// applied beyond what the storage layer enforces.
func (s *MovieInfoService) Create(ctx context.Context, m *domain.MovieInfo) (*domain.MovieInfo, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Create",
		trace.WithAttributes(attribute.Bool("movie_info.client_id", m.ID != "")),
	)
	defer span.End()

	out, err := s.Repo.Save(ctx, s.DB, m)
	if err != nil {
		recordErr(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("movie_info.id", out.ID))
	return out, nil
}

// SaveAll persists a batch of records in one transaction.
func (s *MovieInfoService) SaveAll(ctx context.Context, ms []domain.MovieInfo) ([]domain.MovieInfo, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "SaveAll",
		trace.WithAttributes(attribute.Int("movie_info.count", len(ms))),
	)
	defer span.End()

	out, err := s.Repo.SaveAll(ctx, s.DB, ms)
	if err != nil {
		recordErr(span, err)
	}
	return out, err
}

// ListAll returns every stored record in storage order as a lazy sequence.
// Nothing is read until the caller ranges over it. An empty collection yields
// an empty sequence; a storage failure is yielded as the error value.
func (s *MovieInfoService) ListAll(ctx context.Context) iter.Seq2[domain.MovieInfo, error] {
	return func(yield func(domain.MovieInfo, error) bool) {
		ctx, span := otel.Tracer(tracerName).Start(ctx, "ListAll")
		defer span.End()

		n := 0
		for m, err := range s.Repo.FindAll(ctx, s.DB) {
			if err != nil {
				recordErr(span, err)
				yield(domain.MovieInfo{}, err)
				return
			}
			n++
			if !yield(m, nil) {
				break
			}
		}
		span.SetAttributes(attribute.Int("movie_info.count", n))
	}
}

// GetByID returns the record with the given id, or ErrMovieInfoNotFound.
func (s *MovieInfoService) GetByID(ctx context.Context, id string) (*domain.MovieInfo, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "GetByID",
		trace.WithAttributes(attribute.String("movie_info.id", id)),
	)
	defer span.End()

	m, err := s.Repo.FindByID(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMovieInfoNotFound
		}
		recordErr(span, err)
		return nil, err
	}
	return m, nil
}

// DeleteByID removes the record with the given id. A missing id completes
// without error.
func (s *MovieInfoService) DeleteByID(ctx context.Context, id string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "DeleteByID",
		trace.WithAttributes(attribute.String("movie_info.id", id)),
	)
	defer span.End()

	if err := s.Repo.DeleteByID(ctx, s.DB, id); err != nil {
		recordErr(span, err)
		return err
	}
	return nil
}

// DeleteAll removes every record.
func (s *MovieInfoService) DeleteAll(ctx context.Context) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "DeleteAll")
	defer span.End()

	if err := s.Repo.DeleteAll(ctx, s.DB); err != nil {
		recordErr(span, err)
		return err
	}
	return nil
}

// Stats returns the record count and latest update time, used for ETags.
func (s *MovieInfoService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.Stats(ctx, s.DB)
}

func recordErr(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
