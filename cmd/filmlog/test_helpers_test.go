package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"filmlog/internal/config"
	"filmlog/internal/daemon"
	"filmlog/internal/jobs"
	"filmlog/internal/logging"
	"filmlog/internal/scrape"
	"filmlog/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	site       *testsupport.Site
	daemon     *daemon.Daemon
	apiAddr    string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	site := testsupport.NewSite(t)
	site.AddProfile(testsupport.SiteProfile{
		Username:    "alice",
		DisplayName: "Alice",
		Films: []testsupport.SiteFilm{
			{Slug: "alien", Title: "Alien", Year: 1979, Rating: 5, Liked: true, WatchedDate: "2024-01-05", Review: "Perfect.", ReviewDate: "2024-01-06"},
			{Slug: "heat-1995", Title: "Heat", Year: 1995, Rating: 3, WatchedDate: "2024-01-20"},
		},
	})
	site.AddProfile(testsupport.SiteProfile{
		Username: "bob",
		Films: []testsupport.SiteFilm{
			{Slug: "alien", Title: "Alien", Year: 1979, Rating: 4},
			{Slug: "heat-1995", Title: "Heat", Year: 1995, Rating: 4},
		},
	})

	cfg := testsupport.NewConfig(t, testsupport.WithSite(site))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	pipeline := scrape.NewPipeline(cfg, scrape.NewClient(cfg, nil, logger), st, logger, scrape.WithCooldown(time.Millisecond))
	d, err := daemon.New(cfg, st, logger, jobs.New(cfg, st, pipeline, logger))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		site:       site,
		daemon:     d,
		apiAddr:    d.APIAddr().String(),
		configPath: configPath,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, args, e.apiAddr, e.configPath)
	return out, err
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
