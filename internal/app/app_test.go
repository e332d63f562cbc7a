package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lucasew/slackoffload/internal/eviction"
)

// fakeSlack serves files.list, file downloads, files.delete and
// chat.postMessage for a single workspace.
type fakeSlack struct {
	mu      sync.Mutex
	url     string
	files   []map[string]any
	content map[string]string
	deleted []string
	posts   []map[string]string
}

func newFakeSlack(t *testing.T, content map[string]string, order []string) *fakeSlack {
	t.Helper()
	f := &fakeSlack{content: content}
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	f.url = ts.URL

	for _, id := range order {
		f.files = append(f.files, map[string]any{
			"id":          id,
			"name":        strings.ToLower(id) + ".txt",
			"size":        len(content[id]),
			"url_private": ts.URL + "/download/" + id,
			"mimetype":    "text/plain",
		})
	}
	return f
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer xoxb-test" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.URL.Path == "/files.list":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"files":  f.files,
			"paging": map[string]int{"page": 1, "pages": 1},
		})
	case strings.HasPrefix(r.URL.Path, "/download/"):
		_, _ = w.Write([]byte(f.content[strings.TrimPrefix(r.URL.Path, "/download/")]))
	case r.URL.Path == "/files.delete":
		_ = r.ParseForm()
		f.deleted = append(f.deleted, r.PostForm.Get("file"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	case r.URL.Path == "/chat.postMessage":
		var msg map[string]string
		_ = json.NewDecoder(r.Body).Decode(&msg)
		f.posts = append(f.posts, msg)
		_, _ = w.Write([]byte(`{"ok":true}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func testConfig(slackURL, archiveDir string) Config {
	return Config{
		SlackAPIToken:    "xoxb-test",
		SlackAPIURL:      slackURL,
		ArchiveDir:       archiveDir,
		S3Prefix:         "slack",
		MaxTotalFileSize: 10,
		Room:             "#ops",
	}
}

func TestValidate(t *testing.T) {
	t.Run("Reports Every Missing Key", func(t *testing.T) {
		err := Config{}.Validate()
		if !errors.Is(err, ErrConfigMissing) {
			t.Fatalf("expected ErrConfigMissing, got %v", err)
		}
		for _, key := range []string{"slack-api-token", "max-total-file-size", "s3-bucket", "s3-region-name"} {
			if !strings.Contains(err.Error(), key) {
				t.Errorf("expected %s in %q", key, err)
			}
		}
	})

	t.Run("Archive Dir Replaces S3", func(t *testing.T) {
		cfg := Config{SlackAPIToken: "t", MaxTotalFileSize: 1, ArchiveDir: "/tmp/archive"}
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("New Fails Before IO", func(t *testing.T) {
		_, _, err := New(context.Background(), Config{}, Hooks{})
		if !errors.Is(err, ErrConfigMissing) {
			t.Errorf("expected ErrConfigMissing, got %v", err)
		}
	})
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
	}{
		{"", 0},
		{"1024", 1024},
		{"1GB", 1000 * 1000 * 1000},
		{"500MiB", 500 << 20},
		{"1 GiB", 1 << 30},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if err != nil {
			t.Errorf("ParseSize(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if _, err := ParseSize("lots"); err == nil {
		t.Error("expected error for invalid size")
	}
}

func TestOffloader(t *testing.T) {
	t.Run("Migrates Until Under Quota", func(t *testing.T) {
		slack := newFakeSlack(t, map[string]string{
			"F1": "aaaaaa",
			"F2": "bbbbbbbb",
		}, []string{"F1", "F2"})
		archiveDir := t.TempDir()

		cfg := testConfig(slack.url, archiveDir)
		cfg.Journal = filepath.Join(t.TempDir(), "journal.sqlite")

		var migrated []eviction.Migration
		o, cleanup, err := New(context.Background(), cfg, Hooks{
			OnMigrated: func(m eviction.Migration) { migrated = append(migrated, m) },
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cleanup()

		report, err := o.Run(context.Background(), false)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		// 14 > 10: newest (F2, 8 bytes) goes, 6 <= 10.
		if report.FilesRemoved != 1 || report.BytesSaved != 8 {
			t.Errorf("expected removed=1 saved=8, got %d %d", report.FilesRemoved, report.BytesSaved)
		}
		if len(slack.deleted) != 1 || slack.deleted[0] != "F2" {
			t.Errorf("expected F2 deleted, got %v", slack.deleted)
		}
		data, err := os.ReadFile(filepath.Join(archiveDir, "slack", "F2-f2.txt"))
		if err != nil || string(data) != "bbbbbbbb" {
			t.Errorf("expected archived F2, got %q, %v", data, err)
		}
		if len(migrated) != 1 {
			t.Errorf("expected migration hook once, got %d", len(migrated))
		}

		if len(slack.posts) != 1 || slack.posts[0]["channel"] != "#ops" {
			t.Fatalf("expected one post to #ops, got %v", slack.posts)
		}
		want := fmt.Sprintf("moved 1 files to the %s bucket on S3 saving 8 B.", archiveDir)
		if !strings.Contains(slack.posts[0]["text"], want) {
			t.Errorf("expected %q in %q", want, slack.posts[0]["text"])
		}

		entries, err := o.Journal.FindFile(context.Background(), "F2")
		if err != nil || len(entries) != 1 || entries[0].Key != "slack/F2-f2.txt" {
			t.Errorf("expected journaled migration, got %v, %v", entries, err)
		}
	})

	t.Run("No-op Notification Only On Demand", func(t *testing.T) {
		slack := newFakeSlack(t, map[string]string{"F1": "abc"}, []string{"F1"})
		o, cleanup, err := New(context.Background(), testConfig(slack.url, t.TempDir()), Hooks{})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer cleanup()

		if _, err := o.Run(context.Background(), false); err != nil {
			t.Fatalf("scheduled Run failed: %v", err)
		}
		if len(slack.posts) != 0 {
			t.Errorf("scheduled no-op must not post, got %v", slack.posts)
		}

		if _, err := o.Run(context.Background(), true); err != nil {
			t.Fatalf("on-demand Run failed: %v", err)
		}
		if len(slack.posts) != 1 || slack.posts[0]["text"] != "Nothing to do, file size is 3 B and quota is 10 B" {
			t.Errorf("unexpected posts %v", slack.posts)
		}
		if len(slack.deleted) != 0 {
			t.Errorf("expected nothing deleted, got %v", slack.deleted)
		}
	})

	t.Run("Unknown Strategy", func(t *testing.T) {
		cfg := testConfig("http://127.0.0.1:1", t.TempDir())
		cfg.EvictionStrategy = "random"
		if _, _, err := New(context.Background(), cfg, Hooks{}); err == nil {
			t.Error("expected error for unknown strategy")
		}
	})
}
