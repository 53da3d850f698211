package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-movie-info/internal/domain"
	"github.com/tbourn/go-movie-info/internal/http/middleware"
	"github.com/tbourn/go-movie-info/internal/services"
)

// ---------- stubs ----------

// memMovieSvc keeps records in insertion order.
type memMovieSvc struct {
	mu      sync.Mutex
	order   []string
	byID    map[string]domain.MovieInfo
	updated time.Time

	failWith  error
	listAfter int // yield failWith after this many records on ListAll; -1 disables
	creates   int
}

func newMemMovieSvc(seed ...domain.MovieInfo) *memMovieSvc {
	s := &memMovieSvc{byID: map[string]domain.MovieInfo{}, listAfter: -1}
	for i := range seed {
		_, _ = s.Create(context.Background(), &seed[i])
	}
	s.creates = 0
	return s
}

func (s *memMovieSvc) Create(_ context.Context, m *domain.MovieInfo) (*domain.MovieInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	s.creates++
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, exists := s.byID[m.ID]; !exists {
		s.order = append(s.order, m.ID)
	}
	s.updated = s.updated.Add(time.Second)
	m.UpdatedAt = s.updated
	s.byID[m.ID] = *m
	out := *m
	return &out, nil
}

func (s *memMovieSvc) ListAll(context.Context) iter.Seq2[domain.MovieInfo, error] {
	return func(yield func(domain.MovieInfo, error) bool) {
		s.mu.Lock()
		items := make([]domain.MovieInfo, 0, len(s.order))
		for _, id := range s.order {
			items = append(items, s.byID[id])
		}
		failWith, after := s.failWith, s.listAfter
		s.mu.Unlock()

		for i, m := range items {
			if failWith != nil && after == i {
				yield(domain.MovieInfo{}, failWith)
				return
			}
			if !yield(m, nil) {
				return
			}
		}
		if failWith != nil && after >= len(items) {
			yield(domain.MovieInfo{}, failWith)
		}
	}
}

func (s *memMovieSvc) GetByID(_ context.Context, id string) (*domain.MovieInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	m, ok := s.byID[id]
	if !ok {
		return nil, services.ErrMovieInfoNotFound
	}
	return &m, nil
}

func (s *memMovieSvc) DeleteByID(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.byID[id]; !ok {
		return nil
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.updated = s.updated.Add(time.Second)
	return nil
}

func (s *memMovieSvc) Stats(context.Context) (int64, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, nil, s.failWith
	}
	if len(s.order) == 0 {
		return 0, nil, nil
	}
	ts := s.updated
	return int64(len(s.order)), &ts, nil
}

type memIdemStore struct {
	mu   sync.Mutex
	recs map[string]string
}

func (m *memIdemStore) Lookup(_ context.Context, scope, key string, _ time.Time) (string, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.recs[scope+"|"+key]
	return id, http.StatusAccepted, ok, nil
}

func (m *memIdemStore) Remember(_ context.Context, scope, key, id string, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs == nil {
		m.recs = map[string]string{}
	}
	m.recs[scope+"|"+key] = id
	return nil
}

func fixtures() []domain.MovieInfo {
	release := time.Date(2005, 6, 15, 0, 0, 0, 0, time.UTC)
	cast := []string{"Christian Bale", "Michael Cane"}
	return []domain.MovieInfo{
		domain.NewMovieInfo("", "Batman Begins", 2005, cast, release),
		domain.NewMovieInfo("", "The Dark Knight", 2008, cast, release),
		domain.NewMovieInfo("TDR", "The Dark Knight Rises", 2012, cast, release),
	}
}

func newTestRouter(svc MovieInfoService, idem IdempotencyStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(svc, idem, services.NewCounter(5*time.Millisecond, ""))

	r := gin.New()
	r.Use(middleware.RequestID())
	v1 := r.Group("/v1")
	var lookup middleware.IdempotencyLookup
	if idem != nil {
		lookup = func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
			_, _, found, err := idem.Lookup(ctx, scope, key, now)
			return found, err
		}
	}
	v1.POST("/movie-info", middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, lookup), h.CreateMovieInfo)
	v1.GET("/movie-infos", h.ListMovieInfos)
	v1.GET("/movie-infos/:id", h.GetMovieInfo)
	v1.DELETE("/movie-infos/:id", h.DeleteMovieInfo)
	r.GET("/mono", h.Mono)
	r.GET("/stream", h.Stream)
	return r
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const andhadun = `{"title":"Andhadun","year":2018,"cast":["Ayushmann Khuranna","Tabu"],"releaseDate":"2018-06-15"}`

// ---------- create ----------

func TestCreateMovieInfo_Accepted_WithGeneratedID(t *testing.T) {
	r := newTestRouter(newMemMovieSvc(fixtures()...), nil)

	w := do(r, http.MethodPost, "/v1/movie-info", andhadun, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST = %d %s", w.Code, w.Body.String())
	}
	var got domain.MovieInfo
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.ID == "" || got.Title != "Andhadun" || got.Year != 2018 ||
		len(got.Cast) != 2 || got.ReleaseDate.String() != "2018-06-15" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestCreateMovieInfo_LegacyFieldNames(t *testing.T) {
	svc := newMemMovieSvc()
	r := newTestRouter(svc, nil)

	w := do(r, http.MethodPost, "/v1/movie-info", `{"movieInfoId":"HP1","name":"Harry Potter","year":2001,"casts":["Daniel Radcliffe"]}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST = %d %s", w.Code, w.Body.String())
	}
	m, err := svc.GetByID(context.Background(), "HP1")
	if err != nil || m.Title != "Harry Potter" || m.Cast[0] != "Daniel Radcliffe" {
		t.Fatalf("stored = %+v, %v", m, err)
	}
}

func TestCreateMovieInfo_BadBody_And_StorageFailure(t *testing.T) {
	svc := newMemMovieSvc()
	r := newTestRouter(svc, nil)

	for _, body := range []string{"", "{", `{"year":"soon"}`} {
		w := do(r, http.MethodPost, "/v1/movie-info", body, nil)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"bad_request"`) {
			t.Fatalf("body %q: %d %s", body, w.Code, w.Body.String())
		}
	}

	svc.failWith = errors.New("storage unavailable")
	w := do(r, http.MethodPost, "/v1/movie-info", andhadun, nil)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), `"create_failed"`) {
		t.Fatalf("storage failure: %d %s", w.Code, w.Body.String())
	}
}

func TestCreateMovieInfo_IdempotentReplay(t *testing.T) {
	svc := newMemMovieSvc()
	r := newTestRouter(svc, &memIdemStore{})
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "create-andhadun-1"}

	first := do(r, http.MethodPost, "/v1/movie-info", andhadun, hdr)
	second := do(r, http.MethodPost, "/v1/movie-info", andhadun, hdr)

	if first.Code != http.StatusAccepted || second.Code != http.StatusAccepted {
		t.Fatalf("codes = %d, %d", first.Code, second.Code)
	}
	if second.Header().Get("Idempotency-Replayed") != "true" || first.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("replay header wrong")
	}
	var a, b domain.MovieInfo
	_ = json.Unmarshal(first.Body.Bytes(), &a)
	_ = json.Unmarshal(second.Body.Bytes(), &b)
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("replay returned a different record: %q vs %q", a.ID, b.ID)
	}
	if svc.creates != 1 {
		t.Fatalf("expected exactly one create, got %d", svc.creates)
	}

	third := do(r, http.MethodPost, "/v1/movie-info", andhadun, map[string]string{middleware.HeaderIdempotencyKey: "other"})
	var c domain.MovieInfo
	_ = json.Unmarshal(third.Body.Bytes(), &c)
	if c.ID == a.ID {
		t.Fatalf("a new key must create a new record")
	}
}

func TestCreateMovieInfo_KeyOfDeletedRecordConflicts(t *testing.T) {
	svc := newMemMovieSvc()
	r := newTestRouter(svc, &memIdemStore{})
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "create-andhadun-2"}

	first := do(r, http.MethodPost, "/v1/movie-info", andhadun, hdr)
	var a domain.MovieInfo
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil || first.Code != http.StatusAccepted {
		t.Fatalf("first create: %d %v", first.Code, err)
	}
	if w := do(r, http.MethodDelete, "/v1/movie-infos/"+a.ID, "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}

	for i := 0; i < 3; i++ {
		w := do(r, http.MethodPost, "/v1/movie-info", andhadun, hdr)
		if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), `"idempotency_conflict"`) {
			t.Fatalf("retry %d after delete: %d %s", i, w.Code, w.Body.String())
		}
	}
	if svc.creates != 1 {
		t.Fatalf("expected exactly one create, got %d", svc.creates)
	}
}

func TestCreateMovieInfo_ReplayReturnsCurrentRecord(t *testing.T) {
	svc := newMemMovieSvc()
	r := newTestRouter(svc, &memIdemStore{})
	hdr := map[string]string{middleware.HeaderIdempotencyKey: "create-tdr"}

	if w := do(r, http.MethodPost, "/v1/movie-info", `{"id":"TDR","title":"Dark Knight Rises"}`, hdr); w.Code != http.StatusAccepted {
		t.Fatalf("create = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/v1/movie-info", `{"id":"TDR","title":"The Dark Knight Rises"}`, nil); w.Code != http.StatusAccepted {
		t.Fatalf("replace = %d", w.Code)
	}

	w := do(r, http.MethodPost, "/v1/movie-info", `{"id":"TDR","title":"Dark Knight Rises"}`, hdr)
	if w.Header().Get("Idempotency-Replayed") != "true" || !strings.Contains(w.Body.String(), `"title":"The Dark Knight Rises"`) {
		t.Fatalf("replay = %d %s", w.Code, w.Body.String())
	}
}

// ---------- list ----------

func TestListMovieInfos_JSON_ETag(t *testing.T) {
	svc := newMemMovieSvc(fixtures()...)
	r := newTestRouter(svc, nil)

	w := do(r, http.MethodGet, "/v1/movie-infos", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d", w.Code)
	}
	var got []domain.MovieInfo
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(got) != 3 || got[2].ID != "TDR" {
		t.Fatalf("list = %+v", got)
	}

	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"movie-infos:3:`) {
		t.Fatalf("ETag = %q", etag)
	}
	w = do(r, http.MethodGet, "/v1/movie-infos", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("conditional GET = %d %q", w.Code, w.Body.String())
	}

	do(r, http.MethodDelete, "/v1/movie-infos/TDR", "", nil)
	w = do(r, http.MethodGet, "/v1/movie-infos", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK || w.Header().Get("ETag") == etag {
		t.Fatalf("ETag must change after a delete: %d %q", w.Code, w.Header().Get("ETag"))
	}
}

func TestListMovieInfos_EmptyIsArray(t *testing.T) {
	r := newTestRouter(newMemMovieSvc(), nil)
	w := do(r, http.MethodGet, "/v1/movie-infos", "", nil)
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("empty list = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") != `W/"movie-infos:0:0"` {
		t.Fatalf("ETag = %q", w.Header().Get("ETag"))
	}
}

func TestListMovieInfos_NDJSON(t *testing.T) {
	r := newTestRouter(newMemMovieSvc(fixtures()...), nil)

	w := do(r, http.MethodGet, "/v1/movie-infos", "", map[string]string{"Accept": MIMENDJSON})
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != MIMENDJSON {
		t.Fatalf("NDJSON = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	sc := bufio.NewScanner(strings.NewReader(w.Body.String()))
	var titles []string
	for sc.Scan() {
		var m domain.MovieInfo
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		titles = append(titles, m.Title)
	}
	want := "Batman Begins,The Dark Knight,The Dark Knight Rises"
	if strings.Join(titles, ",") != want {
		t.Fatalf("titles = %v", titles)
	}

	w = do(newTestRouter(newMemMovieSvc(), nil), http.MethodGet, "/v1/movie-infos", "", map[string]string{"Accept": MIMENDJSON})
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Fatalf("empty NDJSON = %d %q", w.Code, w.Body.String())
	}
}

func TestListMovieInfos_Failures(t *testing.T) {
	boom := errors.New("cursor broke")

	svc := newMemMovieSvc(fixtures()...)
	svc.listAfter = 0
	svc.failWith = boom
	r := newTestRouter(svc, nil)

	w := do(r, http.MethodGet, "/v1/movie-infos", "", nil)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), `"list_failed"`) {
		t.Fatalf("JSON failure = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") != "" {
		t.Fatalf("no ETag expected when stats fail")
	}
	w = do(r, http.MethodGet, "/v1/movie-infos", "", map[string]string{"Accept": MIMENDJSON})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("NDJSON failure before first record = %d", w.Code)
	}

	// Failure mid-stream: already-sent lines stay, the rest is cut.
	svc2 := newMemMovieSvc(fixtures()...)
	r2 := newTestRouter(svc2, nil)
	svc2.listAfter = 2
	svc2.failWith = boom
	w = do(r2, http.MethodGet, "/v1/movie-infos", "", map[string]string{"Accept": MIMENDJSON})
	if w.Code != http.StatusOK || strings.Count(w.Body.String(), "\n") != 2 {
		t.Fatalf("mid-stream failure = %d %q", w.Code, w.Body.String())
	}
}

// ---------- get / delete ----------

func TestGetMovieInfo_FoundAndMissing(t *testing.T) {
	svc := newMemMovieSvc(fixtures()...)
	r := newTestRouter(svc, nil)

	w := do(r, http.MethodGet, "/v1/movie-infos/TDR", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET TDR = %d", w.Code)
	}
	var m domain.MovieInfo
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m.ID != "TDR" || m.Title != "The Dark Knight Rises" {
		t.Fatalf("record = %+v", m)
	}

	w = do(r, http.MethodGet, "/v1/movie-infos/nope", "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), `"not_found"`) {
		t.Fatalf("missing = %d %s", w.Code, w.Body.String())
	}

	svc.failWith = errors.New("db down")
	w = do(r, http.MethodGet, "/v1/movie-infos/TDR", "", nil)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), `"get_failed"`) {
		t.Fatalf("failure = %d %s", w.Code, w.Body.String())
	}
}

func TestDeleteMovieInfo_ThenGetIs404(t *testing.T) {
	svc := newMemMovieSvc(fixtures()...)
	r := newTestRouter(svc, nil)

	if w := do(r, http.MethodDelete, "/v1/movie-infos/TDR", "", nil); w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Fatalf("DELETE = %d %q", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/v1/movie-infos/TDR", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET after delete = %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/v1/movie-infos/TDR", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("second DELETE = %d", w.Code)
	}

	svc.failWith = errors.New("db down")
	if w := do(r, http.MethodDelete, "/v1/movie-infos/x", "", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("DELETE failure = %d", w.Code)
	}
}
