package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumatoshi-tech/codecouple/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.ChangesetByCommit, cfg.Changeset.Mode)
	assert.Equal(t, config.AlgorithmComponents, cfg.Cluster.Algorithm)
	assert.Equal(t, 5, cfg.Edge.MinRevisions)
	assert.Equal(t, 50, cfg.Extraction.MaxChangesetSize)
	assert.Equal(t, 50, cfg.Edge.TopKEdgesPerFile)
	assert.InDelta(t, 0.9, cfg.Extraction.RenameSimilarity, 1e-9)
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	configContent := `
changeset:
  mode: by_author_time_window
  author_time_window_hours: 12

cluster:
  algorithm: louvain
  resolution: 1.5

edge:
  min_revisions: 3
`

	tmpDir := t.TempDir()

	tmpFile, err := os.CreateTemp(tmpDir, "codecouple-*.yaml")
	require.NoError(t, err)

	_, writeErr := tmpFile.WriteString(configContent)
	require.NoError(t, writeErr)
	require.NoError(t, tmpFile.Close())

	cfg, loadErr := config.Load(tmpFile.Name())
	require.NoError(t, loadErr)

	assert.Equal(t, config.ChangesetByAuthorTimeWindow, cfg.Changeset.Mode)
	assert.Equal(t, 12, cfg.Changeset.AuthorTimeWindowHours)
	assert.Equal(t, config.AlgorithmLouvain, cfg.Cluster.Algorithm)
	assert.InDelta(t, 1.5, cfg.Cluster.Resolution, 1e-9)
	assert.Equal(t, 3, cfg.Edge.MinRevisions)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("CODECOUPLE_EDGE_MIN_REVISIONS", "9")
	t.Setenv("CODECOUPLE_CLUSTER_ALGORITHM", "dbscan")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Edge.MinRevisions)
	assert.Equal(t, config.AlgorithmDBSCAN, cfg.Cluster.Algorithm)
}

func TestValidate_RejectsNonPositiveMinRevisions(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Edge.MinRevisions = 0

	err = config.Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidMinRevisions)
}

func TestValidate_RejectsUnrecognizedChangesetMode(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Changeset.Mode = "by_phase_of_the_moon"

	err = config.Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidChangesetMode)
}

func TestValidate_RejectsOutOfRangeRenameSimilarity(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Extraction.RenameSimilarity = 1.5

	err = config.Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidRenameSimilarity)
}

func TestValidate_RejectsUnrecognizedAlgorithm(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Cluster.Algorithm = "quantum_annealing"

	err = config.Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidAlgorithm)
}

func TestValidate_AcceptsDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.NoError(t, config.Validate(cfg))
}
