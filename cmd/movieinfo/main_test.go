package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-movie-info/internal/config"
	"github.com/tbourn/go-movie-info/internal/domain"
	"github.com/tbourn/go-movie-info/internal/repo"
)

func TestLoadDotenv(t *testing.T) {
	if err := loadDotenv(""); err != nil {
		t.Fatalf("empty path: %v", err)
	}
	if err := loadDotenv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("MOVIEINFO_TEST_VAR=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOVIEINFO_TEST_VAR", "")
	os.Unsetenv("MOVIEINFO_TEST_VAR")
	if err := loadDotenv(path); err != nil {
		t.Fatalf("loadDotenv: %v", err)
	}
	if got := os.Getenv("MOVIEINFO_TEST_VAR"); got != "from-dotenv" {
		t.Fatalf("MOVIEINFO_TEST_VAR = %q", got)
	}
}

func TestAppVersion(t *testing.T) {
	t.Setenv("APP_VERSION", "")
	if got := appVersion(); got != version {
		t.Fatalf("appVersion() = %q; want %q", got, version)
	}
	t.Setenv("APP_VERSION", "1.4.0")
	if got := appVersion(); got != "1.4.0" {
		t.Fatalf("appVersion() = %q", got)
	}
}

func TestSetup_InvalidConfig(t *testing.T) {
	t.Setenv("RATE_BURST", "0")
	if _, err := setup(); err == nil || !strings.Contains(err.Error(), "config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestNewServer_AppliesLimitsAndRoutes(t *testing.T) {
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "serve.db"))
	t.Setenv("READ_TIMEOUT", "3s")
	t.Setenv("MAX_HEADER_BYTES", "4096")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	db, err := openDB(cfg.DBPath)
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	defer closeDB(db)

	srv := newServer(cfg, db)
	if srv.Addr != ":8080" || srv.ReadTimeout != 3*time.Second || srv.MaxHeaderBytes != 4096 {
		t.Fatalf("server limits not applied: addr=%s read=%v maxHdr=%d", srv.Addr, srv.ReadTimeout, srv.MaxHeaderBytes)
	}

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
}

func TestOpenDB_MissingDirectory(t *testing.T) {
	if _, err := openDB(filepath.Join(t.TempDir(), "nope", "x.db")); err == nil {
		t.Fatalf("expected error for missing parent directory")
	}
}

func TestPurgeIdempotency_RemovesExpired(t *testing.T) {
	db, err := openDB(filepath.Join(t.TempDir(), "purge.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer closeDB(db)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := repo.CreateIdempotency(ctx, db, "POST /v1/movie-info", "old", "TDR", 202, -time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateIdempotency(ctx, db, "POST /v1/movie-info", "live", "BB", 202, time.Hour); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		purgeIdempotency(ctx, db, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		var n int64
		db.Model(&domain.Idempotency{}).Count(&n)
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expired record not purged, %d left", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("purge loop did not stop on cancel")
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "seed"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("subcommand %q missing: %v", name, err)
		}
	}
	if f := root.PersistentFlags().Lookup("env-file"); f == nil || f.DefValue != ".env" {
		t.Fatalf("env-file flag missing")
	}
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--help"})
	if err := root.Execute(); err != nil || !strings.Contains(out.String(), "seed") {
		t.Fatalf("help output: %v %q", err, out.String())
	}
}
