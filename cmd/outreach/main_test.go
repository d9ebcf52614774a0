package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insta-outreach/internal/config"
	"insta-outreach/internal/core/domain"
)

func TestResolveProduct(t *testing.T) {
	path := filepath.Join(t.TempDir(), "product.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"title":"Eco Bottle","category":"Home","price":"24.99","link":"https://shop.example.com/p"}`), 0o644))

	p, err := resolveProduct(path, domain.ProductPayload{Price: "19.99"})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductPayload{Title: "Eco Bottle", Category: "Home", Price: "19.99", Link: "https://shop.example.com/p"}, p)

	_, err = resolveProduct("", domain.ProductPayload{Category: "Home"})
	assert.EqualError(t, err, "product title is required")

	_, err = resolveProduct(filepath.Join(t.TempDir(), "missing.json"), domain.ProductPayload{})
	assert.Error(t, err)
}

func TestBuildLogger(t *testing.T) {
	log, err := buildLogger(config.LogConfig{Level: "warn"}, false)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(-1))

	log, err = buildLogger(config.LogConfig{Level: "warn", Development: true}, true)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(-1))

	_, err = buildLogger(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No campaigns yet.\n", buf.String())

	buf.Reset()
	printHistory(&buf, []domain.CampaignRecord{{
		ID:        "c1",
		Product:   domain.ProductPayload{Title: "Eco Bottle"},
		Summary:   domain.CampaignSummary{TotalUsers: 3, SuccessCount: 2, FailCount: 1, OverallStatus: domain.OverallSuccess},
		StartedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}})
	out := buf.String()
	assert.Contains(t, out, "2026-05-01 09:00")
	assert.Contains(t, out, "Eco Bottle")
	assert.Contains(t, out, "2/3")
}

func TestPrintThreads(t *testing.T) {
	var buf bytes.Buffer
	printThreads(&buf, []domain.Thread{{ID: "t1", Username: "alice", LastMessage: "hey"}})
	assert.Equal(t, "@alice [t1]: hey\n", buf.String())
}

func TestHistoryCommand_JSONStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORAGE_JSON_PATH", filepath.Join(dir, "campaigns.json"))
	t.Setenv("DATABASE_URL", "")
	t.Chdir(dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "No campaigns yet.\n", out.String())
}
