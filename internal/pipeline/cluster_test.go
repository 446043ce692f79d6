package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appsight/insights-cli/internal/resilience"
)

// twoBlobs returns vectors forming two well-separated direction groups.
func twoBlobs() [][]float64 {
	return [][]float64{
		{1, 0.01, 0}, {1, 0.02, 0}, {1, 0.03, 0}, {0.9, 0.01, 0},
		{0, 1, 0.01}, {0, 1, 0.02}, {0.01, 0.9, 0}, {0, 0.95, 0.01},
	}
}

func TestKMeans_SeparatesBlobs(t *testing.T) {
	vectors := twoBlobs()
	result, err := KMeans(vectors, 2, 42)
	require.NoError(t, err)
	require.Equal(t, 2, result.K)
	require.Len(t, result.Assignments, len(vectors))

	// Every vector gets exactly one cluster in range.
	for i, c := range result.Assignments {
		assert.GreaterOrEqual(t, c, 0, "vector %d", i)
		assert.Less(t, c, result.K, "vector %d", i)
	}

	// The two blobs land in different clusters, each internally uniform.
	first := result.Assignments[:4]
	second := result.Assignments[4:]
	for _, c := range first {
		assert.Equal(t, first[0], c)
	}
	for _, c := range second {
		assert.Equal(t, second[0], c)
	}
	assert.NotEqual(t, first[0], second[0])
}

func TestKMeans_DeterministicForSeed(t *testing.T) {
	vectors := twoBlobs()
	first, err := KMeans(vectors, 2, 7)
	require.NoError(t, err)
	for range 3 {
		again, err := KMeans(vectors, 2, 7)
		require.NoError(t, err)
		assert.Equal(t, first.Assignments, again.Assignments)
		assert.Equal(t, first.Centroids, again.Centroids)
	}
}

func TestKMeans_ReducesKToDistinctVectors(t *testing.T) {
	vectors := [][]float64{
		{1, 0}, {1, 0}, {0, 1}, {0, 1},
	}
	result, err := KMeans(vectors, 8, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, result.K)
}

func TestKMeans_DimensionMismatch(t *testing.T) {
	vectors := [][]float64{{1, 0, 0}, {0, 1}}
	_, err := KMeans(vectors, 2, 42)
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err), "bad input must not be retried")
	assert.Contains(t, err.Error(), "dimension")
}

func TestKMeans_InvalidInput(t *testing.T) {
	_, err := KMeans(nil, 2, 42)
	require.Error(t, err)

	_, err = KMeans([][]float64{{1, 0}}, 0, 42)
	require.Error(t, err)
}

func TestRepresentatives(t *testing.T) {
	vectors := twoBlobs()
	result, err := KMeans(vectors, 2, 42)
	require.NoError(t, err)

	reps := Representatives(result, vectors, 2)
	require.Len(t, reps, 2)
	for c, idxs := range reps {
		assert.LessOrEqual(t, len(idxs), 2)
		for _, idx := range idxs {
			assert.Equal(t, c, result.Assignments[idx], "representative must belong to its cluster")
		}
	}
}

func TestRepresentatives_CapsAtClusterSize(t *testing.T) {
	vectors := [][]float64{{1, 0}, {0, 1}}
	result, err := KMeans(vectors, 2, 42)
	require.NoError(t, err)

	reps := Representatives(result, vectors, 10)
	for _, idxs := range reps {
		assert.Len(t, idxs, 1)
	}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, 2, cosineDistance([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float64{0, 0}, []float64{1, 0}), 1e-9, "zero vector is maximally distant")
}
