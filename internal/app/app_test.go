package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/discrapp/discr-site/internal/funding"
)

const campaignPage = `<html><head>
<meta property="og:title" content="Help Launch Discr - Lost Disc Recovery App - GoFundMe" />
</head><body><div class="progress">$1,250 raised of $2,000 goal</div><span>17 donations</span></body></html>`

func newUpstream(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(campaignURL string) Config {
	cfg := DefaultConfig()
	cfg.CampaignURL = campaignURL
	cfg.CacheBackend = CacheNone
	cfg.CanonicalHost = false
	cfg.FetchTimeout = 2 * time.Second
	return cfg
}

func TestApp_Snapshot(t *testing.T) {
	upstream, _ := newUpstream(t, http.StatusOK, campaignPage)
	a, err := New(context.Background(), testConfig(upstream.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	res := a.Snapshot(context.Background())
	if res.Outcome != funding.OutcomeOK {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	s := res.Snapshot
	if s.Title != "Help Launch Discr - Lost Disc Recovery App" {
		t.Errorf("title = %q", s.Title)
	}
	if s.AmountRaised != 1250 || s.GoalAmount != 2000 || s.DonationCount != 17 || s.PercentComplete != 63 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
	if s.URL != upstream.URL {
		t.Errorf("url = %q", s.URL)
	}
}

func TestApp_UpstreamFailureServesDefaults(t *testing.T) {
	upstream, _ := newUpstream(t, http.StatusBadGateway, "")
	a, err := New(context.Background(), testConfig(upstream.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/gofundme", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, s-maxage=60, stale-while-revalidate" {
		t.Fatalf("Cache-Control = %q", cc)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != true || body["title"] != "Help Launch Discr" || body["goalAmount"] != 450.0 {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestApp_DiskCacheAvoidsRefetch(t *testing.T) {
	upstream, hits := newUpstream(t, http.StatusOK, campaignPage)
	cfg := testConfig(upstream.URL)
	cfg.CacheBackend = CacheDisk
	cfg.CacheDir = t.TempDir()

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	for i := 0; i < 3; i++ {
		if res := a.Snapshot(context.Background()); res.Outcome != funding.OutcomeOK {
			t.Fatalf("call %d outcome = %s", i, res.Outcome)
		}
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("upstream hits = %d, want 1", got)
	}
}

func TestApp_RedisCacheSharedAcrossInstances(t *testing.T) {
	upstream, hits := newUpstream(t, http.StatusOK, campaignPage)
	mr := miniredis.RunT(t)
	cfg := testConfig(upstream.URL)
	cfg.CacheBackend = CacheRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	for i := 0; i < 2; i++ {
		a, err := New(context.Background(), cfg)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if res := a.Snapshot(context.Background()); res.Snapshot.AmountRaised != 1250 {
			t.Fatalf("instance %d snapshot = %+v", i, res.Snapshot)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Fatalf("upstream hits = %d, want 1", got)
	}
}

func TestNew_CacheClearForcesRefetch(t *testing.T) {
	upstream, hits := newUpstream(t, http.StatusOK, campaignPage)
	cfg := testConfig(upstream.URL)
	cfg.CacheBackend = CacheDisk
	cfg.CacheDir = t.TempDir()

	for i, clearFirst := range []bool{false, true} {
		cfg.CacheClear = clearFirst
		a, err := New(context.Background(), cfg)
		if err != nil {
			t.Fatalf("New #%d: %v", i, err)
		}
		a.Snapshot(context.Background())
		_ = a.Close()
	}
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Fatalf("upstream hits = %d, want 2 (cleared cache must refetch)", got)
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig("https://example.com/f/x")
	cfg.CacheBackend = CacheRedis
	cfg.RedisURL = addr
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected startup error for unreachable redis")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig("")
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for empty campaign url")
	}
}

func TestApp_ServeListener(t *testing.T) {
	upstream, _ := newUpstream(t, http.StatusOK, campaignPage)
	a, err := New(context.Background(), testConfig(upstream.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.ServeListener(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/gofundme")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var s map[string]any
	err = json.NewDecoder(resp.Body).Decode(&s)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s["donationCount"] != 17.0 {
		t.Fatalf("donationCount = %v", s["donationCount"])
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
