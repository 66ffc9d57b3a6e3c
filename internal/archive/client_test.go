package archive_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"archivist/internal/archive"
	"archivist/internal/config"
	"archivist/internal/testsupport"
)

func newClient(t *testing.T, server *httptest.Server) *archive.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Remote.SearchURL = server.URL + "/advancedsearch.php"
	cfg.Remote.MetadataURL = server.URL + "/metadata"
	cfg.Remote.DownloadURL = server.URL + "/download"
	return archive.NewClient(&cfg, nil)
}

func TestSearchParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "mars rover" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("output"); got != "json" {
			t.Errorf("output = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
            "response": {
                "numFound": 2,
                "docs": [
                    {"identifier": "rover-imgs", "title": ["Mars Rover Images"], "mediatype": "image", "collection": "nasa", "downloads": 120},
                    {"identifier": "rover-logs", "title": "Rover Logs", "downloads": "7"}
                ]
            }
        }`))
	}))
	defer server.Close()

	page, err := newClient(t, server).Search(context.Background(), "mars rover", 1, 20, "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("total = %d", page.Total)
	}
	if len(page.Results) != 2 {
		t.Fatalf("results = %d", len(page.Results))
	}
	first := page.Results[0]
	if first.Title != "Mars Rover Images" {
		t.Fatalf("list title not collapsed: %q", first.Title)
	}
	if len(first.Collection) != 1 || first.Collection[0] != "nasa" {
		t.Fatalf("collection = %v", first.Collection)
	}
	if page.Results[1].Downloads != 7 {
		t.Fatalf("string downloads = %d", page.Results[1].Downloads)
	}
}

func TestSearchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := newClient(t, server).Search(context.Background(), "anything", 1, 20, ""); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestItemParsesFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metadata/rover-imgs" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
            "metadata": {"title": "Mars Rover Images", "mediatype": "image"},
            "files": [
                {"name": "sol1.jpg", "size": "2048", "format": "JPEG", "md5": "abc", "mtime": "1609459200", "source": "original"},
                {"name": "sol1_thumb.jpg", "size": 128, "source": "derivative"}
            ]
        }`))
	}))
	defer server.Close()

	item, err := newClient(t, server).Item(context.Background(), "rover-imgs")
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if len(item.Files) != 2 {
		t.Fatalf("files = %d", len(item.Files))
	}
	if item.Files[0].Size == nil || *item.Files[0].Size != 2048 {
		t.Fatalf("string size = %v", item.Files[0].Size)
	}
	if item.Files[1].Size == nil || *item.Files[1].Size != 128 {
		t.Fatalf("numeric size = %v", item.Files[1].Size)
	}
}

func TestItemEmptyRecordIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if _, err := newClient(t, server).Item(context.Background(), "gone"); err == nil {
		t.Fatal("expected error for empty metadata record")
	}
}

func TestFileURLEscapesSegments(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.DownloadURL = "https://example.org/download"
	client := archive.NewClient(&cfg, nil)

	got := client.FileURL("rover-imgs", "notes/day one.txt")
	want := "https://example.org/download/rover-imgs/notes/day%20one.txt"
	if got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestFetchDownloadsAndSkips(t *testing.T) {
	payload := []byte("telemetry frame data")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/rover-imgs/sol1.bin" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	client := newClient(t, server)
	dest := t.TempDir()
	files := []archive.ItemFile{{Name: "sol1.bin", Source: "original"}}

	err := client.Fetch(context.Background(), "rover-imgs", files, dest, archive.FetchOptions{Retries: 1})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	target := filepath.Join(dest, "rover-imgs", "sol1.bin")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("content = %q", data)
	}

	// Pre-existing files are left alone when skipping is on.
	testsupport.WriteFile(t, target, 4)
	err = client.Fetch(context.Background(), "rover-imgs", files, dest, archive.FetchOptions{SkipExisting: true})
	if err != nil {
		t.Fatalf("fetch with skip: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 4 {
		t.Fatalf("size = %d, want untouched placeholder", info.Size())
	}
}

func TestFetchFlatten(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	client := newClient(t, server)
	dest := t.TempDir()
	files := []archive.ItemFile{{Name: "sol1.bin"}}

	err := client.Fetch(context.Background(), "rover-imgs", files, dest, archive.FetchOptions{Flatten: true})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "sol1.bin")); err != nil {
		t.Fatalf("flattened file missing: %v", err)
	}
}
