// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the MovieInfo
// document.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
//
// Error semantics:
//   - FindMovieInfo returns ErrNotFound (gorm.ErrRecordNotFound) when no row
//     matches.
//   - DeleteMovieInfo does not distinguish a missing id from an existing one.
//   - Any other DB error is propagated unchanged.
//
// Functions:
//
//   - SaveMovieInfo(ctx, db, m) -> *domain.MovieInfo, error
//     Upserts by id; assigns a UUID when m.ID is empty.
//
//   - SaveMovieInfos(ctx, db, ms) -> []domain.MovieInfo, error
//     Upserts a batch inside one transaction.
//
//   - StreamMovieInfos(ctx, db) -> iter.Seq2[domain.MovieInfo, error]
//     Cursor over the whole collection in storage order.
//
//   - ListMovieInfos(ctx, db) -> []domain.MovieInfo, error
//
//   - FindMovieInfo(ctx, db, id) -> *domain.MovieInfo, error
//
//   - DeleteMovieInfo(ctx, db, id) -> error
//
//   - DeleteAllMovieInfos(ctx, db) -> error
package repo

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-movie-info/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// upsertOnID replaces every document column when the id already exists.
// created_at is left untouched so the original creation time survives.
var upsertOnID = clause.OnConflict{
	Columns:   []clause.Column{{Name: "id"}},
	DoUpdates: clause.AssignmentColumns([]string{"title", "year", "cast_members", "release_date", "updated_at"}),
}

// SaveMovieInfo inserts m, or replaces the stored document with the same id.
// When m.ID is empty a random UUID is assigned before the write. m is updated
// in place and returned.
func SaveMovieInfo(ctx context.Context, db *gorm.DB, m *domain.MovieInfo) (*domain.MovieInfo, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := db.WithContext(ctx).Clauses(upsertOnID).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// SaveMovieInfos upserts ms atomically: either every document is stored or
// none is. Documents without an id receive one.
func SaveMovieInfos(ctx context.Context, db *gorm.DB, ms []domain.MovieInfo) ([]domain.MovieInfo, error) {
	if len(ms) == 0 {
		return []domain.MovieInfo{}, nil
	}
	out := make([]domain.MovieInfo, len(ms))
	copy(out, ms)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range out {
			if _, err := SaveMovieInfo(ctx, tx, &out[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StreamMovieInfos returns a sequence over every stored document, read row by
// row from an open cursor. The cursor is released when iteration stops, either
// because the rows are exhausted or because the consumer breaks out early.
// A query or scan failure is yielded once as the error value and ends the
// sequence. Each iteration re-runs the query.
func StreamMovieInfos(ctx context.Context, db *gorm.DB) iter.Seq2[domain.MovieInfo, error] {
	return func(yield func(domain.MovieInfo, error) bool) {
		tx := db.WithContext(ctx).Model(&domain.MovieInfo{})
		rows, err := tx.Rows()
		if err != nil {
			yield(domain.MovieInfo{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var m domain.MovieInfo
			if err := tx.ScanRows(rows, &m); err != nil {
				yield(domain.MovieInfo{}, err)
				return
			}
			if !yield(m, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.MovieInfo{}, err)
		}
	}
}

// ListMovieInfos returns all stored documents in storage order. It returns an
// empty slice when the collection is empty.
func ListMovieInfos(ctx context.Context, db *gorm.DB) ([]domain.MovieInfo, error) {
	out := []domain.MovieInfo{}
	err := db.WithContext(ctx).Find(&out).Error
	return out, err
}

// FindMovieInfo fetches a single document by exact id match. If the record
// does not exist, it returns ErrNotFound.
func FindMovieInfo(ctx context.Context, db *gorm.DB, id string) (*domain.MovieInfo, error) {
	var m domain.MovieInfo
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteMovieInfo removes the document with the given id. Deleting a missing
// id is not an error.
func DeleteMovieInfo(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.MovieInfo{}).Error
}

// DeleteAllMovieInfos empties the collection.
func DeleteAllMovieInfos(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&domain.MovieInfo{}).Error
}
