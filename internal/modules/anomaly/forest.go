package anomaly

import (
	"math"
	"math/rand"
)

const (
	defaultTreeCount = 100
	maxSampleSize    = 256
)

// IsolationForest scores observations by how quickly random axis-aligned
// splits isolate them. Scores are in (0, 1]; values near 1 indicate points
// isolated in very few splits.
type IsolationForest struct {
	treeCount int
	seed      int64
}

// NewIsolationForest creates a forest of the default size. The same seed and
// input always produce the same scores.
func NewIsolationForest(seed int64) *IsolationForest {
	return &IsolationForest{treeCount: defaultTreeCount, seed: seed}
}

type forestNode struct {
	left, right *forestNode
	feature     int
	split       float64
	size        int
}

// Score returns one anomaly score per row of the feature matrix.
func (f *IsolationForest) Score(features [][]float64) []float64 {
	n := len(features)
	if n == 0 {
		return nil
	}

	sampleSize := n
	if sampleSize > maxSampleSize {
		sampleSize = maxSampleSize
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))
	if heightLimit < 1 {
		heightLimit = 1
	}

	rng := rand.New(rand.NewSource(f.seed))
	pathSums := make([]float64, n)

	for t := 0; t < f.treeCount; t++ {
		sample := sampleRows(rng, features, sampleSize)
		root := buildTree(rng, sample, 0, heightLimit)
		for i, row := range features {
			pathSums[i] += pathLength(root, row, 0)
		}
	}

	norm := averagePathLength(sampleSize)
	scores := make([]float64, n)
	for i, sum := range pathSums {
		avg := sum / float64(f.treeCount)
		scores[i] = math.Pow(2, -avg/norm)
	}
	return scores
}

func sampleRows(rng *rand.Rand, features [][]float64, size int) [][]float64 {
	if size >= len(features) {
		return features
	}
	idx := rng.Perm(len(features))[:size]
	sample := make([][]float64, size)
	for i, j := range idx {
		sample[i] = features[j]
	}
	return sample
}

func buildTree(rng *rand.Rand, rows [][]float64, depth, heightLimit int) *forestNode {
	if len(rows) <= 1 || depth >= heightLimit {
		return &forestNode{size: len(rows)}
	}

	dims := len(rows[0])
	feature := rng.Intn(dims)

	lo, hi := rows[0][feature], rows[0][feature]
	for _, row := range rows[1:] {
		if row[feature] < lo {
			lo = row[feature]
		}
		if row[feature] > hi {
			hi = row[feature]
		}
	}
	if lo == hi {
		return &forestNode{size: len(rows)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, row := range rows {
		if row[feature] < split {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &forestNode{
		feature: feature,
		split:   split,
		size:    len(rows),
		left:    buildTree(rng, left, depth+1, heightLimit),
		right:   buildTree(rng, right, depth+1, heightLimit),
	}
}

func pathLength(node *forestNode, row []float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + averagePathLength(node.size)
	}
	if row[node.feature] < node.split {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// averagePathLength is the expected path length of an unsuccessful search in
// a binary search tree over n points: 2*H(n-1) - 2*(n-1)/n.
func averagePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(float64(n-1)) + 0.5772156649015329
	return 2*h - 2*float64(n-1)/float64(n)
}
