package pipeline

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/appsight/insights-cli/internal/resilience"
)

const (
	kmeansMaxIterations = 100
	kmeansTolerance     = 1e-6
)

// KMeansResult holds cluster assignments and the final centroids.
type KMeansResult struct {
	Assignments []int
	Centroids   [][]float64
	// K is the effective cluster count, reduced from the requested k when
	// there are fewer distinct vectors.
	K int
}

// KMeans clusters vectors into at most k groups using seeded k-means++
// initialization and cosine distance. The same vectors, k, and seed always
// produce the same result.
func KMeans(vectors [][]float64, k int, seed int64) (*KMeansResult, error) {
	if len(vectors) == 0 {
		return nil, resilience.NewPermanentError(eris.New("cluster: no vectors"), 0)
	}
	if k <= 0 {
		return nil, resilience.NewPermanentError(eris.Errorf("cluster: invalid k %d", k), 0)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, resilience.NewPermanentError(
				eris.Errorf("cluster: vector %d has dimension %d, expected %d", i, len(v), dim), 0)
		}
	}

	if distinct := countDistinct(vectors); k > distinct {
		k = distinct
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec

	centroids := initCentroids(vectors, k, dim, rng)

	assignments := make([]int, len(vectors))
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		for i, v := range vectors {
			assignments[i] = nearestCentroid(v, centroids)
		}

		next := updateCentroids(vectors, assignments, k, dim)

		shift := 0.0
		for c := range centroids {
			shift += cosineDistance(centroids[c], next[c])
		}
		centroids = next
		if shift < kmeansTolerance {
			break
		}
	}

	// Final assignment against the converged centroids.
	for i, v := range vectors {
		assignments[i] = nearestCentroid(v, centroids)
	}

	return &KMeansResult{Assignments: assignments, Centroids: centroids, K: k}, nil
}

// initCentroids uses k-means++ seeding: first centroid drawn uniformly,
// each subsequent one with probability proportional to squared distance
// from its nearest chosen centroid.
func initCentroids(vectors [][]float64, k, dim int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, k)
	first := rng.Intn(len(vectors))
	centroids[0] = append([]float64(nil), vectors[first]...)

	for i := 1; i < k; i++ {
		distances := make([]float64, len(vectors))
		total := 0.0
		for j, v := range vectors {
			minDist := math.Inf(1)
			for c := 0; c < i; c++ {
				if d := cosineDistance(v, centroids[c]); d < minDist {
					minDist = d
				}
			}
			distances[j] = minDist * minDist
			total += distances[j]
		}

		if total == 0 {
			idx := rng.Intn(len(vectors))
			centroids[i] = append([]float64(nil), vectors[idx]...)
			continue
		}

		target := rng.Float64() * total
		cumulative := 0.0
		selected := 0
		for j, d := range distances {
			cumulative += d
			if cumulative >= target {
				selected = j
				break
			}
		}
		centroids[i] = append([]float64(nil), vectors[selected]...)
	}
	return centroids
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		if d := cosineDistance(v, c); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func updateCentroids(vectors [][]float64, assignments []int, k, dim int) [][]float64 {
	sums := make([][]float64, k)
	counts := make([]int, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}
	for i, v := range vectors {
		c := assignments[i]
		counts[c]++
		for d, x := range v {
			sums[c][d] += x
		}
	}
	for c := range sums {
		if counts[c] == 0 {
			// Keep an empty cluster's centroid at the first vector so it
			// stays deterministic.
			copy(sums[c], vectors[0])
			continue
		}
		for d := range sums[c] {
			sums[c][d] /= float64(counts[c])
		}
	}
	return sums
}

// cosineDistance is 1 - cosine similarity, in [0, 2]. Zero vectors are at
// maximal distance from everything.
func cosineDistance(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

func countDistinct(vectors [][]float64) int {
	n := 0
	for i, v := range vectors {
		dup := false
		for j := 0; j < i; j++ {
			if vectorsEqual(v, vectors[j]) {
				dup = true
				break
			}
		}
		if !dup {
			n++
		}
	}
	return n
}

func vectorsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Representatives returns up to n review indexes per cluster, the ones
// closest to their centroid. Distance ties keep the earlier review.
func Representatives(result *KMeansResult, vectors [][]float64, n int) [][]int {
	type candidate struct {
		idx  int
		dist float64
	}

	perCluster := make([][]candidate, result.K)
	for i, c := range result.Assignments {
		perCluster[c] = append(perCluster[c], candidate{
			idx:  i,
			dist: cosineDistance(vectors[i], result.Centroids[c]),
		})
	}

	out := make([][]int, result.K)
	for c, cands := range perCluster {
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].dist != cands[j].dist {
				return cands[i].dist < cands[j].dist
			}
			return cands[i].idx < cands[j].idx
		})
		limit := n
		if limit > len(cands) {
			limit = len(cands)
		}
		for _, cand := range cands[:limit] {
			out[c] = append(out[c], cand.idx)
		}
	}
	return out
}
