package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediashelf/mediashelf/internal/config"
)

func TestResolverConfig_BuiltInFranchiseRules(t *testing.T) {
	cfg := config.Default()
	require.Empty(t, cfg.Resolver.FranchiseRulesFile)

	rc, err := resolverConfig(cfg)
	require.NoError(t, err)

	require.NotEmpty(t, rc.FranchiseRules)
	assert.Equal(t, "doctor-who-revival", rc.FranchiseRules[0].Name)
	assert.Equal(t, cfg.Resolver.TitleThreshold, rc.Thresholds.Title)
	assert.Equal(t, cfg.Resolver.ArtistThreshold, rc.Thresholds.Artist)
	assert.Equal(t, cfg.Metadata.AcoustID.MinScore, rc.FingerprintMinScore)
	assert.True(t, rc.LiveRule)
}

func TestResolverConfig_RulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "franchise.yaml")
	rules := `
rules:
  - name: battlestar-reimagined
    name_pattern: "(?i)^battlestar galactica"
    min_year: 2004
    preferred_provider_order: [tv, movie, freetext]
`
	require.NoError(t, os.WriteFile(path, []byte(rules), 0o644))

	cfg := config.Default()
	cfg.Resolver.FranchiseRulesFile = path

	rc, err := resolverConfig(cfg)
	require.NoError(t, err)
	require.Len(t, rc.FranchiseRules, 1)
	assert.Equal(t, "battlestar-reimagined", rc.FranchiseRules[0].Name)
}

func TestResolverConfig_MissingRulesFile(t *testing.T) {
	cfg := config.Default()
	cfg.Resolver.FranchiseRulesFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := resolverConfig(cfg)
	assert.Error(t, err)
}
