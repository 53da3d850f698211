// Package domain defines the persistence models for the movie-info service.
// These types are mapped with GORM and are shared across the repository,
// service, and HTTP layers.
package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// MovieInfo is the single document persisted by the service: metadata about a
// movie, keyed by a string identifier.
//
// Fields:
//   - ID: string primary key; generated by the repository when empty on save.
//   - Title: free-text movie title.
//   - Year: release year, not range-checked.
//   - Cast: ordered list of cast members, stored as a JSON document column.
//   - ReleaseDate: calendar date, encoded as YYYY-MM-DD on the wire.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type MovieInfo struct {
	ID          string                      `json:"id"          gorm:"type:varchar(64);primaryKey"`
	Title       string                      `json:"title"       gorm:"type:text"`
	Year        int                         `json:"year"        gorm:"type:integer"`
	Cast        datatypes.JSONSlice[string] `json:"cast"        gorm:"column:cast_members"`
	ReleaseDate Date                        `json:"releaseDate" gorm:"column:release_date"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for MovieInfo.
func (MovieInfo) TableName() string { return "movie_infos" }

// NewMovieInfo builds a MovieInfo from its fields. An empty id asks the
// repository to assign one on save.
func NewMovieInfo(id, title string, year int, cast []string, releaseDate time.Time) MovieInfo {
	return MovieInfo{
		ID:          id,
		Title:       title,
		Year:        year,
		Cast:        datatypes.JSONSlice[string](cast),
		ReleaseDate: NewDate(releaseDate),
	}
}

// movieInfoJSON mirrors MovieInfo on the wire and additionally accepts the
// legacy field names (movieInfoId, name, casts) used by older clients.
type movieInfoJSON struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Year        int       `json:"year"`
	Cast        []string  `json:"cast"`
	ReleaseDate Date      `json:"releaseDate"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	LegacyID   string   `json:"movieInfoId"`
	LegacyName string   `json:"name"`
	LegacyCast []string `json:"casts"`
}

// UnmarshalJSON decodes a MovieInfo, preferring the current field names and
// falling back to the legacy ones when the current ones are absent.
func (m *MovieInfo) UnmarshalJSON(b []byte) error {
	var in movieInfoJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	id := in.ID
	if id == "" {
		id = in.LegacyID
	}
	title := in.Title
	if title == "" {
		title = in.LegacyName
	}
	cast := in.Cast
	if cast == nil {
		cast = in.LegacyCast
	}
	*m = MovieInfo{
		ID:          id,
		Title:       title,
		Year:        in.Year,
		Cast:        datatypes.JSONSlice[string](cast),
		ReleaseDate: in.ReleaseDate,
		CreatedAt:   in.CreatedAt,
		UpdatedAt:   in.UpdatedAt,
	}
	return nil
}
