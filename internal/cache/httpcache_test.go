package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHTTPCache_SaveLoad(t *testing.T) {
	t.Parallel()
	c := &HTTPCache{Dir: t.TempDir()}
	in := &Entry{
		URL:          "https://example.com/f/campaign",
		ContentType:  "text/html",
		ETag:         `"v1"`,
		LastModified: "Mon, 02 Jan 2006 15:04:05 GMT",
		SavedAt:      time.Now().UTC().Truncate(time.Second),
		Body:         []byte("<html>$5 raised</html>"),
	}
	if err := c.Save(context.Background(), in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := c.Load(context.Background(), in.URL)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(out.Body) != string(in.Body) || out.ETag != in.ETag || out.LastModified != in.LastModified {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if !out.SavedAt.Equal(in.SavedAt) {
		t.Fatalf("SavedAt = %v, want %v", out.SavedAt, in.SavedAt)
	}
	// Meta on disk must not duplicate the body.
	meta, err := os.ReadFile(filepath.Join(c.Dir, Key(in.URL)+".meta.json"))
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if len(meta) == 0 || strings.Contains(string(meta), "raised") {
		t.Fatalf("unexpected meta contents: %s", meta)
	}
}

func TestHTTPCache_Miss(t *testing.T) {
	t.Parallel()
	c := &HTTPCache{Dir: t.TempDir()}
	if _, err := c.Load(context.Background(), "https://example.com/none"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestHTTPCache_Unconfigured(t *testing.T) {
	t.Parallel()
	c := &HTTPCache{}
	if _, err := c.Load(context.Background(), "https://example.com"); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestHTTPCache_StrictPerms(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "http")
	c := &HTTPCache{Dir: dir, StrictPerms: true}
	url := "https://example.com/strict"
	if err := c.Save(context.Background(), &Entry{URL: url, SavedAt: time.Now(), Body: []byte("x")}); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat dir: %v", err)
	}
	if got := info.Mode() & 0o777; got != 0o700 {
		t.Fatalf("dir mode = %o, want 0700", got)
	}
	for _, p := range []string{c.metaPath(Key(url)), c.bodyPath(Key(url))} {
		finfo, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := finfo.Mode() & 0o777; got != 0o600 {
			t.Fatalf("%s mode = %o, want 0600", filepath.Base(p), got)
		}
	}
}

func TestPurgeHTTPCacheByAge(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := &HTTPCache{Dir: dir}
	ctx := context.Background()
	old := &Entry{URL: "https://example.com/old", SavedAt: time.Now().Add(-2 * time.Hour), Body: []byte("old")}
	fresh := &Entry{URL: "https://example.com/fresh", SavedAt: time.Now(), Body: []byte("fresh")}
	for _, e := range []*Entry{old, fresh} {
		if err := c.Save(ctx, e); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	removed, err := PurgeHTTPCacheByAge(dir, time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := c.Load(ctx, old.URL); !errors.Is(err, ErrMiss) {
		t.Fatalf("old entry should be gone, got %v", err)
	}
	if _, err := os.Stat(c.bodyPath(Key(old.URL))); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("old body should be gone")
	}
	if _, err := c.Load(ctx, fresh.URL); err != nil {
		t.Fatalf("fresh entry should remain: %v", err)
	}
}

func TestPurgeHTTPCacheByAge_MissingDir(t *testing.T) {
	t.Parallel()
	n, err := PurgeHTTPCacheByAge(filepath.Join(t.TempDir(), "absent"), time.Minute)
	if err != nil || n != 0 {
		t.Fatalf("got %d, %v", n, err)
	}
}

func TestClearDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "junk"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, got %d entries", len(entries))
	}
	if err := ClearDir(" "); err == nil {
		t.Fatal("expected error for blank dir")
	}
}

func TestEntry_Fresh(t *testing.T) {
	now := time.Now()
	e := &Entry{SavedAt: now.Add(-5 * time.Minute)}
	if !e.Fresh(now, 10*time.Minute) {
		t.Error("5m old entry should be fresh under 10m ttl")
	}
	if e.Fresh(now, time.Minute) {
		t.Error("5m old entry should be stale under 1m ttl")
	}
	if e.Fresh(now, 0) {
		t.Error("zero ttl never serves from cache")
	}
	var nilEntry *Entry
	if nilEntry.Fresh(now, time.Hour) || nilEntry.Revalidatable() {
		t.Error("nil entry is neither fresh nor revalidatable")
	}
}
