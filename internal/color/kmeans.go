package color

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// KMeansParams controls iterative centroid clustering of pixel colors.
type KMeansParams struct {
	K        int
	MaxIter  int
	Epsilon  float64 // max centroid shift below which a run converges
	Attempts int     // random re-initializations; best run wins
}

// DefaultKMeansParams mirrors the extraction defaults: k=3, up to 100
// iterations or a 0.2 shift, best of 10 initializations.
func DefaultKMeansParams() KMeansParams {
	return KMeansParams{K: 3, MaxIter: 100, Epsilon: 0.2, Attempts: 10}
}

// kmeansResult is a single converged run.
type kmeansResult struct {
	centroids   [][3]float64
	counts      []int
	compactness float64 // total intra-cluster squared distance
}

// KMeans clusters points into at most params.K groups, running
// params.Attempts independent initializations and returning the centroids
// and cluster sizes of the run with the lowest intra-cluster variance.
func KMeans(points [][3]float64, params KMeansParams, rng *rand.Rand) ([][3]float64, []int, error) {
	if len(points) == 0 {
		return nil, nil, fmt.Errorf("no points to cluster")
	}

	k := params.K
	if k < 1 {
		k = 1
	}
	if k > len(points) {
		k = len(points)
	}
	attempts := params.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var best *kmeansResult
	for attempt := 0; attempt < attempts; attempt++ {
		result := runKMeans(points, k, params.MaxIter, params.Epsilon, rng)
		if best == nil || result.compactness < best.compactness {
			best = result
		}
	}

	return best.centroids, best.counts, nil
}

func runKMeans(points [][3]float64, k, maxIter int, epsilon float64, rng *rand.Rand) *kmeansResult {
	centroids := seedPlusPlus(points, k, rng)
	assignments := make([]int, len(points))

	for iter := 0; iter < maxIter; iter++ {
		// Assignment step.
		for i, p := range points {
			assignments[i] = nearestCentroid(p, centroids)
		}

		// Update step.
		sums := make([][3]float64, k)
		counts := make([]int, k)
		for i, p := range points {
			c := assignments[i]
			floats.Add(sums[c][:], p[:])
			counts[c]++
		}

		shift := 0.0
		for c := range centroids {
			if counts[c] == 0 {
				// Reseed an empty cluster to a random point.
				centroids[c] = points[rng.Intn(len(points))]
				continue
			}
			var next [3]float64
			copy(next[:], sums[c][:])
			floats.Scale(1/float64(counts[c]), next[:])

			d := floats.Distance(centroids[c][:], next[:], 2)
			if d > shift {
				shift = d
			}
			centroids[c] = next
		}

		if shift < epsilon {
			break
		}
	}

	// Final assignment for counts and compactness.
	counts := make([]int, k)
	compactness := 0.0
	for _, p := range points {
		c := nearestCentroid(p, centroids)
		counts[c]++
		d := floats.Distance(p[:], centroids[c][:], 2)
		compactness += d * d
	}

	return &kmeansResult{centroids: centroids, counts: counts, compactness: compactness}
}

// seedPlusPlus picks initial centroids with k-means++ weighting: the first
// at random, each next with probability proportional to squared distance
// from the nearest chosen centroid.
func seedPlusPlus(points [][3]float64, k int, rng *rand.Rand) [][3]float64 {
	centroids := make([][3]float64, 0, k)
	centroids = append(centroids, points[rng.Intn(len(points))])

	dists := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := floats.Distance(p[:], centroids[nearestCentroid(p, centroids)][:], 2)
			dists[i] = d * d
			total += dists[i]
		}

		if total == 0 {
			// All remaining points coincide with a centroid.
			centroids = append(centroids, points[rng.Intn(len(points))])
			continue
		}

		target := rng.Float64() * total
		acc := 0.0
		picked := len(points) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				picked = i
				break
			}
		}
		centroids = append(centroids, points[picked])
	}

	return centroids
}

func nearestCentroid(p [3]float64, centroids [][3]float64) int {
	best := 0
	bestDist := floats.Distance(p[:], centroids[0][:], 2)
	for c := 1; c < len(centroids); c++ {
		if d := floats.Distance(p[:], centroids[c][:], 2); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
