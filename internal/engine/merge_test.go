package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/repo-insights/internal/engine"
)

type candidate struct {
	ID      string
	Title   string
	Problem string
	Score   *float64
}

func (c candidate) Key() string { return c.ID }

type enrichment struct {
	ID      string
	Problem string
}

func (e enrichment) Key() string { return e.ID }

type ranking struct {
	ID    string
	Score float64
}

func (r ranking) Key() string { return r.ID }

func enrichCandidate(c candidate, e enrichment) candidate {
	c.Problem = e.Problem
	return c
}

func rankCandidate(c candidate, r ranking) candidate {
	score := r.Score
	c.Score = &score
	return c
}

func runMerge(batches [][]candidate, enrichments []enrichment, rankings []ranking) ([]candidate, []string) {
	return engine.Merge(batches, enrichments, rankings, enrichCandidate, func(r ranking) float64 { return r.Score }, rankCandidate)
}

func TestMerge_EnrichAndRank(t *testing.T) {
	batches := [][]candidate{
		{{ID: "disc_0", Title: "Search"}},
		{{ID: "gap_0", Title: "Exports"}},
	}
	enrichments := []enrichment{{ID: "disc_0", Problem: "P"}}
	rankings := []ranking{
		{ID: "gap_0", Score: 90},
		{ID: "disc_0", Score: 50},
	}

	merged, warnings := runMerge(batches, enrichments, rankings)
	require.Empty(t, warnings)
	require.Len(t, merged, 2)

	assert.Equal(t, "gap_0", merged[0].ID)
	require.NotNil(t, merged[0].Score)
	assert.Equal(t, 90.0, *merged[0].Score)

	assert.Equal(t, "disc_0", merged[1].ID)
	assert.Equal(t, "P", merged[1].Problem)
	require.NotNil(t, merged[1].Score)
	assert.Equal(t, 50.0, *merged[1].Score)
}

func TestMerge_DuplicateKeepsFirst(t *testing.T) {
	batches := [][]candidate{
		{{ID: "disc_0", Title: "Original"}},
		{{ID: "disc_0", Title: "Impostor"}, {ID: "gap_0", Title: "Other"}},
	}

	merged, warnings := runMerge(batches, nil, nil)
	require.Len(t, merged, 2)
	assert.Equal(t, "Original", merged[0].Title)
	assert.Equal(t, "gap_0", merged[1].ID)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "disc_0")
}

func TestMerge_UnknownReferencesDropped(t *testing.T) {
	batches := [][]candidate{{{ID: "disc_0"}}}
	enrichments := []enrichment{{ID: "disc_9", Problem: "ghost"}}
	rankings := []ranking{{ID: "gap_9", Score: 10}}

	merged, warnings := runMerge(batches, enrichments, rankings)
	require.Len(t, merged, 1)
	assert.Empty(t, merged[0].Problem)
	assert.Nil(t, merged[0].Score)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "disc_9")
	assert.Contains(t, warnings[1], "gap_9")
}

func TestMerge_DuplicateRankingDropped(t *testing.T) {
	batches := [][]candidate{{{ID: "disc_0"}}}
	rankings := []ranking{
		{ID: "disc_0", Score: 40},
		{ID: "disc_0", Score: 99},
	}

	merged, warnings := runMerge(batches, nil, rankings)
	require.Len(t, merged, 1)
	require.NotNil(t, merged[0].Score)
	assert.Equal(t, 40.0, *merged[0].Score)
	require.Len(t, warnings, 1)
}

func TestMerge_UnrankedFollowInDiscoveryOrder(t *testing.T) {
	batches := [][]candidate{
		{{ID: "disc_0"}, {ID: "disc_1"}},
		{{ID: "gap_0"}},
	}
	rankings := []ranking{{ID: "disc_1", Score: 70}}

	merged, warnings := runMerge(batches, nil, rankings)
	assert.Empty(t, warnings)
	require.Len(t, merged, 3)
	assert.Equal(t, "disc_1", merged[0].ID)
	assert.Equal(t, "disc_0", merged[1].ID)
	assert.Equal(t, "gap_0", merged[2].ID)
	assert.Nil(t, merged[1].Score)
	assert.Nil(t, merged[2].Score)
}

func TestMerge_TiesResolveByDiscoveryOrder(t *testing.T) {
	batches := [][]candidate{
		{{ID: "disc_0"}, {ID: "disc_1"}},
	}
	rankings := []ranking{
		{ID: "disc_1", Score: 50},
		{ID: "disc_0", Score: 50},
	}

	merged, _ := runMerge(batches, nil, rankings)
	require.Len(t, merged, 2)
	assert.Equal(t, "disc_0", merged[0].ID)
	assert.Equal(t, "disc_1", merged[1].ID)
}

func TestMerge_Deterministic(t *testing.T) {
	batches := [][]candidate{
		{{ID: "disc_0"}, {ID: "disc_1"}},
		{{ID: "gap_0"}, {ID: "debt_0"}},
	}
	enrichments := []enrichment{{ID: "gap_0", Problem: "p"}}
	rankings := []ranking{
		{ID: "debt_0", Score: 30},
		{ID: "disc_0", Score: 80},
	}

	first, firstWarnings := runMerge(batches, enrichments, rankings)
	second, secondWarnings := runMerge(batches, enrichments, rankings)
	assert.Equal(t, first, second)
	assert.Equal(t, firstWarnings, secondWarnings)
}

func TestMerge_Empty(t *testing.T) {
	merged, warnings := runMerge(nil, nil, nil)
	assert.Empty(t, merged)
	assert.Empty(t, warnings)
}
