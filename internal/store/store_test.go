package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumatoshi-tech/codecouple/internal/extract"
	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/store"
)

func openTestStore(t *testing.T) (*store.Store, context.Context) {
	t.Helper()

	ctx := context.Background()

	s, err := store.Open(ctx, t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s, ctx
}

func TestEntityResolver_GetOrCreateEntity_IsIdempotent(t *testing.T) {
	t.Parallel()

	s, ctx := openTestStore(t)
	resolver := store.NewEntityResolver(ctx, s)

	id1, err := resolver.GetOrCreateEntity("repo1", model.EntityFile, "internal/edge/builder.go")
	require.NoError(t, err)

	id2, err := resolver.GetOrCreateEntity("repo1", model.EntityFile, "internal/edge/builder.go")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "resolving the same path twice must return the same stable id")
}

func TestEntityResolver_Rename_PreservesID(t *testing.T) {
	t.Parallel()

	s, ctx := openTestStore(t)
	resolver := store.NewEntityResolver(ctx, s)

	id, err := resolver.GetOrCreateEntity("repo1", model.EntityFile, "old/path.go")
	require.NoError(t, err)

	require.NoError(t, resolver.Rename(id, "new/path.go"))

	e, ok, err := s.EntityByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new/path.go", e.QualifiedName)
	assert.Equal(t, id, e.ID)
}

func TestEntityResolver_ApplyStats_AccumulatesAcrossCalls(t *testing.T) {
	t.Parallel()

	s, ctx := openTestStore(t)
	resolver := store.NewEntityResolver(ctx, s)

	id, err := resolver.GetOrCreateEntity("repo1", model.EntityFile, "a.go")
	require.NoError(t, err)

	when := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, resolver.ApplyStats(id, extract.StatsDelta{
		AuthorID: 1, Insertions: 10, Deletions: 2, When: when, CountsCommit: true,
	}))
	require.NoError(t, resolver.ApplyStats(id, extract.StatsDelta{
		AuthorID: 1, Insertions: 5, Deletions: 1, When: when.AddDate(0, 0, 1), CountsCommit: true,
	}))

	e, ok, err := s.EntityByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, e.Stats.TotalCommits)
	assert.Equal(t, int64(15), e.Stats.Insertions)
	assert.Equal(t, int64(3), e.Stats.Deletions)
}

func TestStore_HotspotsRanksByChurnDescending(t *testing.T) {
	t.Parallel()

	s, ctx := openTestStore(t)
	resolver := store.NewEntityResolver(ctx, s)

	hot, err := resolver.GetOrCreateEntity("repo1", model.EntityFile, "hot.go")
	require.NoError(t, err)
	cold, err := resolver.GetOrCreateEntity("repo1", model.EntityFile, "cold.go")
	require.NoError(t, err)

	require.NoError(t, resolver.ApplyStats(hot, extract.StatsDelta{AuthorID: 1, Insertions: 100, When: time.Now()}))
	require.NoError(t, resolver.ApplyStats(cold, extract.StatsDelta{AuthorID: 1, Insertions: 1, When: time.Now()}))

	entities, err := s.Hotspots(ctx, "repo1", 10)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "hot.go", entities[0].QualifiedName)
	assert.Equal(t, "cold.go", entities[1].QualifiedName)
}

func TestStore_RepoMeta_RoundTrip(t *testing.T) {
	t.Parallel()

	s, ctx := openTestStore(t)

	_, ok, err := s.RepoMeta(ctx, "unknown-repo")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetRepoMeta(ctx, "repo1", "deadbeef"))

	oid, ok, err := s.RepoMeta(ctx, "repo1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "deadbeef", oid)

	require.NoError(t, s.SetRepoMeta(ctx, "repo1", "cafef00d"))

	oid, ok, err = s.RepoMeta(ctx, "repo1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cafef00d", oid, "SetRepoMeta upserts rather than duplicating the row")
}

func TestStore_ReplaceRelationshipsAndQueryBetween(t *testing.T) {
	t.Parallel()

	s, ctx := openTestStore(t)
	resolver := store.NewEntityResolver(ctx, s)

	a, err := resolver.GetOrCreateEntity("repo1", model.EntityFile, "a.go")
	require.NoError(t, err)
	b, err := resolver.GetOrCreateEntity("repo1", model.EntityFile, "b.go")
	require.NoError(t, err)

	rels := []model.Relationship{{
		SourceType: model.SourceGit, Kind: model.CoChanged,
		SrcID: minID(a, b), DstID: maxID(a, b), Weight: 0.5,
		Metadata: model.RelationshipMetadata{PairCount: 3, Support: 5},
	}}

	require.NoError(t, s.ReplaceRelationships(ctx, "repo1", "run-1", rels))

	rel, ok, err := s.RelationshipBetween(ctx, "repo1", a, b)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.5, rel.Weight, 1e-9)
	assert.Equal(t, 3, rel.Metadata.PairCount)
}

func minID(a, b int64) int64 {
	if a < b {
		return a
	}

	return b
}

func maxID(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}
