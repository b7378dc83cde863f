package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"agbprep/internal/config"
	"agbprep/internal/imagery"
	"agbprep/internal/services"
)

type stubChecker struct{ err error }

func (s stubChecker) Health(context.Context) error { return s.err }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 0); !result.Passed {
		t.Fatalf("expected pass with zero floor, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, 1<<40); result.Passed {
		t.Fatalf("expected failure with an exbibyte floor, got: %s", result.Detail)
	}
}

func TestCheckFreeSpaceUsesExistingAncestor(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "a", "b", "c")
	result := CheckFreeSpace("space", missing, 0)
	if !result.Passed {
		t.Fatalf("expected pass for missing subdirectory, got: %s", result.Detail)
	}
}

func TestCheckCatalog(t *testing.T) {
	ctx := context.Background()
	if result := CheckCatalog(ctx, "catalog", stubChecker{}); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckCatalog(ctx, "catalog", stubChecker{err: context.DeadlineExceeded})
	if result.Passed || result.Detail != "health check timed out (catalog unresponsive)" {
		t.Fatalf("unexpected timeout result: %+v", result)
	}
	if result := CheckCatalog(ctx, "catalog", nil); result.Passed {
		t.Fatal("expected failure for nil checker")
	}
}

func TestCheckCatalogAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := imagery.NewClient(imagery.Config{BaseURL: srv.URL}, imagery.WithRetryMaxAttempts(1))
	if result := CheckCatalog(context.Background(), "catalog", client); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestRunAllSkipsCatalogWithoutURL(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.AOIDir = t.TempDir()
	cfg.Paths.ImageryDir = t.TempDir()
	cfg.Imagery.MinFreeMiB = 0

	results := RunAll(context.Background(), &cfg, stubChecker{})
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	if Failed(results) != 1 {
		t.Fatalf("expected only the catalog check to fail, got %+v", results)
	}
	if results[len(results)-1].Passed {
		t.Fatal("expected catalog check to fail without base_url")
	}
}

func TestGate(t *testing.T) {
	if err := Gate([]Result{{Name: "a", Passed: true}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := Gate([]Result{{Name: "a", Passed: true}, {Name: "Free space", Detail: "1 MiB free"}})
	if !errors.Is(err, services.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", err)
	}
	if !services.IsFatal(err) {
		t.Fatal("expected gate failure to be fatal")
	}
}
