package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/discrapp/discr-site/internal/app"
)

func runSnapshot(t *testing.T, args ...string) map[string]any {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(append([]string{"snapshot", "--env-file", "", "--cache.backend", "none"}, args...))
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(out.Bytes(), &body); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, out.String())
	}
	return body
}

func TestSnapshot_PrintsParsedCampaign(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<meta property="og:title" content="Help Launch Discr - GoFundMe"><p>$90 raised of $450</p><p>4 donations</p>`))
	}))
	defer upstream.Close()

	body := runSnapshot(t, "--campaign.url", upstream.URL)
	if body["amountRaised"] != 90.0 || body["percentComplete"] != 20.0 || body["donationCount"] != 4.0 {
		t.Fatalf("unexpected snapshot: %v", body)
	}
	if body["url"] != upstream.URL {
		t.Fatalf("url = %v", body["url"])
	}
}

// The CLI mirrors the endpoint: an upstream failure still prints the default
// record and exits cleanly.
func TestSnapshot_UpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	body := runSnapshot(t, "--campaign.url", upstream.URL, "--campaign.fallbackTitle", "Offline Title")
	if body["error"] != true || body["title"] != "Offline Title" || body["goalAmount"] != 450.0 {
		t.Fatalf("unexpected snapshot: %v", body)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "discr.yaml")
	file := "campaign:\n  fallbackTitle: From File\n  goal: 100\nfetch:\n  timeout: 4s\ncache:\n  backend: none\n"
	if err := os.WriteFile(cfgPath, []byte(file), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DISCR_CAMPAIGN_GOAL", "200")
	t.Setenv("DISCR_FETCH_TIMEOUT", "6s")

	var got app.Config
	root := newRootCmd(&bytes.Buffer{})
	for _, c := range root.Commands() {
		if c.Name() == "serve" {
			c.RunE = func(cmd *cobra.Command, _ []string) error {
				var err error
				got, err = loadConfig(cmd, cmdOptions(t, cmd))
				return err
			}
		}
	}
	root.SetArgs([]string{"serve", "--env-file", "", "--config", cfgPath, "--fetch.timeout", "9s", "--redirect.canonicalHost=false"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got.FallbackTitle != "From File" {
		t.Errorf("FallbackTitle = %q, want file value", got.FallbackTitle)
	}
	if got.GoalAmount != 200 {
		t.Errorf("GoalAmount = %v, want env value over file", got.GoalAmount)
	}
	if got.FetchTimeout != 9*time.Second {
		t.Errorf("FetchTimeout = %v, want flag value over env", got.FetchTimeout)
	}
	if got.CanonicalHost {
		t.Error("CanonicalHost flag not applied")
	}
	if got.SuccessMaxAge != 600*time.Second {
		t.Errorf("SuccessMaxAge = %v, want default", got.SuccessMaxAge)
	}
}

// cmdOptions rebuilds options from the parsed flag set so the test can call
// loadConfig without reaching into newRootCmd's closure.
func cmdOptions(t *testing.T, cmd *cobra.Command) *options {
	t.Helper()
	fs := cmd.Flags()
	opts := &options{}
	var err error
	if opts.configPath, err = fs.GetString("config"); err != nil {
		t.Fatalf("config flag: %v", err)
	}
	if opts.fetchTimeout, err = fs.GetDuration("fetch.timeout"); err != nil {
		t.Fatalf("timeout flag: %v", err)
	}
	if opts.canonicalHost, err = fs.GetBool("redirect.canonicalHost"); err != nil {
		t.Fatalf("canonical flag: %v", err)
	}
	return opts
}

func TestVersionFlag(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte(app.BuildVersion)) {
		t.Fatalf("version output = %q", out.String())
	}
}
