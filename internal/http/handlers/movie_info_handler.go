// Movie-info HTTP handlers.
//
// This file exposes the record endpoints:
//   - POST   /movie-info          (create, 202 with the stored record)
//   - GET    /movie-infos         (list all, JSON array or NDJSON, weak ETag)
//   - GET    /movie-infos/{id}    (fetch one)
//   - DELETE /movie-infos/{id}    (delete one, always 204 on success)
//
// Handlers only translate between HTTP and MovieInfoService; no field of a
// record is validated or rewritten here.
//
// Idempotency:
// If the client sends an Idempotency-Key and a previous create succeeded with
// the same key, the record is returned with `Idempotency-Replayed: true` and
// nothing new is created. The body reflects the record's current stored
// state, not a snapshot of the first response. Once that record is deleted
// the key answers 409 idempotency_conflict until it expires.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-movie-info/internal/domain"
	"github.com/tbourn/go-movie-info/internal/http/middleware"
	"github.com/tbourn/go-movie-info/internal/services"
)

// MIMENDJSON selects the streamed list representation.
const MIMENDJSON = "application/x-ndjson"

// MovieInfoService is the record service consumed by the handlers.
// Implementations must honor ctx and be safe for concurrent use.
type MovieInfoService interface {
	Create(ctx context.Context, m *domain.MovieInfo) (*domain.MovieInfo, error)
	ListAll(ctx context.Context) iter.Seq2[domain.MovieInfo, error]
	GetByID(ctx context.Context, id string) (*domain.MovieInfo, error)
	DeleteByID(ctx context.Context, id string) error
	// Stats backs the list ETag.
	Stats(ctx context.Context) (count int64, maxUpdatedAt *time.Time, err error)
}

// IdempotencyStore remembers which record a create with a given key produced.
type IdempotencyStore interface {
	// Lookup returns the stored outcome for (scope, key), found=false when
	// there is none or it has expired.
	Lookup(ctx context.Context, scope, key string, now time.Time) (resourceID string, status int, found bool, err error)
	// Remember stores the outcome of a successful create.
	Remember(ctx context.Context, scope, key, resourceID string, status int) error
}

// Ticker produces the values of the /mono and /stream demo endpoints.
type Ticker interface {
	Mono() string
	Run(ctx context.Context) <-chan int64
}

// Handlers groups the API endpoints.
type Handlers struct {
	movies MovieInfoService
	idem   IdempotencyStore
	ticker Ticker
}

// New wires the handlers. idem may be nil, which disables replays.
func New(movies MovieInfoService, idem IdempotencyStore, ticker Ticker) *Handlers {
	return &Handlers{movies: movies, idem: idem, ticker: ticker}
}

// CreateMovieInfo godoc
// @ID          createMovieInfo
// @Summary     Create a movie-info record
// @Description Stores the record and returns it with its id. A missing id is generated; an existing id is replaced.
// @Description Supports idempotent retries via the Idempotency-Key header.
// @Tags        MovieInfo
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string            false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    domain.MovieInfo  true   "Record to store"
//
// @Success     202  {object}  domain.MovieInfo
// @Header      202  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency-Key refers to a deleted record"
// @Failure     429  {object}  handlers.ErrorResponse  "Too many requests"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-info [post]
func (h *Handlers) CreateMovieInfo(c *gin.Context) {
	ctx := c.Request.Context()
	scope, key, hasKey := middleware.GetIdempotencyKey(c)

	if hasKey && h.idem != nil {
		prev, status, err := h.replay(ctx, scope, key)
		switch {
		case err == nil:
			c.Header("Idempotency-Replayed", "true")
			ok(c, status, prev)
			return
		case errors.Is(err, errKeyConsumed):
			fail(c, http.StatusConflict, ErrCodeIdempotencyConflict, "Idempotency-Key was used for a record that no longer exists")
			return
		case errors.Is(err, errNoReplay) && !middleware.IsReplay(c):
			// first use of the key
		case middleware.IsReplay(c):
			// flagged as a replay (and let past the limiter) but not replayable
			fail(c, http.StatusConflict, ErrCodeIdempotencyConflict, "Idempotency-Key could not be replayed")
			return
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
			return
		}
	}

	var in domain.MovieInfo
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	out, err := h.movies.Create(ctx, &in)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}

	if hasKey && h.idem != nil {
		if err := h.idem.Remember(ctx, scope, key, out.ID, http.StatusAccepted); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("movie_info_id", out.ID).Msg("idempotency record not stored")
		}
	}

	ok(c, http.StatusAccepted, out)
}

var (
	// errNoReplay: no live outcome is stored for the key.
	errNoReplay = errors.New("no stored outcome for idempotency key")
	// errKeyConsumed: the key is live but its record has been deleted.
	errKeyConsumed = errors.New("idempotency key refers to a deleted record")
)

// replay returns the record created by an earlier request with the same key.
// The record is read as it is stored now, so a later replace of the same id
// shows up in the replayed body.
func (h *Handlers) replay(ctx context.Context, scope, key string) (*domain.MovieInfo, int, error) {
	id, status, found, err := h.idem.Lookup(ctx, scope, key, time.Now().UTC())
	if err != nil {
		return nil, 0, errors.Join(errNoReplay, err)
	}
	if !found {
		return nil, 0, errNoReplay
	}
	prev, err := h.movies.GetByID(ctx, id)
	if errors.Is(err, services.ErrMovieInfoNotFound) {
		return nil, 0, errKeyConsumed
	}
	if err != nil {
		return nil, 0, err
	}
	if status == 0 {
		status = http.StatusAccepted
	}
	return prev, status, nil
}

// ListMovieInfos godoc
// @ID          listMovieInfos
// @Summary     List all movie-info records
// @Description Returns every record in storage order. With `Accept: application/x-ndjson` the records are streamed one JSON object per line.
// @Description Supports a weak ETag via If-None-Match and may return 304.
// @Tags        MovieInfo
// @Produce     json
// @Produce     application/x-ndjson
//
// @Param       If-None-Match  header  string  false  "Return 304 if the ETag matches"  example(W/\"movie-infos:3:1718409600000000000\")
//
// @Success     200  {array}   domain.MovieInfo
// @Header      200  {string}  ETag  "Weak ETag for the current collection"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-infos [get]
func (h *Handlers) ListMovieInfos(c *gin.Context) {
	ctx := c.Request.Context()

	if count, maxTS, err := h.movies.Stats(ctx); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"movie-infos:%d:%d"`, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	if strings.Contains(c.GetHeader("Accept"), MIMENDJSON) {
		h.streamNDJSON(c, h.movies.ListAll(ctx))
		return
	}

	out := []domain.MovieInfo{}
	for m, err := range h.movies.ListAll(ctx) {
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		out = append(out, m)
	}
	ok(c, http.StatusOK, out)
}

// streamNDJSON writes one record per line and flushes after each. A failure
// before the first record becomes a regular error response; after that the
// stream is cut short and the failure is logged.
func (h *Handlers) streamNDJSON(c *gin.Context, seq iter.Seq2[domain.MovieInfo, error]) {
	enc := json.NewEncoder(c.Writer)
	n := 0
	for m, err := range seq {
		if err != nil {
			if n == 0 {
				fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
				return
			}
			middleware.LoggerFrom(c).Error().Err(err).Int("written", n).Msg("ndjson stream aborted")
			_ = c.Error(err)
			return
		}
		if n == 0 {
			c.Header("Content-Type", MIMENDJSON)
			c.Status(http.StatusOK)
		}
		if err := enc.Encode(m); err != nil {
			return
		}
		c.Writer.Flush()
		n++
	}
	if n == 0 {
		c.Header("Content-Type", MIMENDJSON)
		c.Status(http.StatusOK)
		c.Writer.WriteHeaderNow()
	}
}

// GetMovieInfo godoc
// @ID          getMovieInfo
// @Summary     Get a movie-info record
// @Tags        MovieInfo
// @Produce     json
//
// @Param       id  path  string  true  "Record id"  example(TDR)
//
// @Success     200  {object}  domain.MovieInfo
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-infos/{id} [get]
func (h *Handlers) GetMovieInfo(c *gin.Context) {
	m, err := h.movies.GetByID(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, services.ErrMovieInfoNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "movie info not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeGetFailed, err.Error())
	default:
		ok(c, http.StatusOK, m)
	}
}

// DeleteMovieInfo godoc
// @ID          deleteMovieInfo
// @Summary     Delete a movie-info record
// @Description Deleting an id that does not exist also returns 204.
// @Tags        MovieInfo
//
// @Param       id  path  string  true  "Record id"  example(TDR)
//
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /movie-infos/{id} [delete]
func (h *Handlers) DeleteMovieInfo(c *gin.Context) {
	if err := h.movies.DeleteByID(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeDeleteFailed, err.Error())
		return
	}
	noContent(c)
}
