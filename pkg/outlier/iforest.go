package outlier

import (
	"math"
	"math/rand"
)

// ForestOptions controls the isolation forest ensemble. Zero values fall
// back to the usual defaults.
type ForestOptions struct {
	Trees      int
	SampleSize int
	Seed       int64
}

type treeNode struct {
	feature int
	split   float64
	left    *treeNode
	right   *treeNode
	size    int
}

// IsolationForest scores multivariate points by average isolation path
// length: points that isolate quickly are anomalous.
type IsolationForest struct {
	trees      []*treeNode
	sampleSize int
}

// FitForest builds the ensemble over the sample matrix. The random
// source is seeded from the options so scoring is deterministic run to
// run.
func FitForest(data [][]float64, opts ForestOptions) *IsolationForest {
	if opts.Trees <= 0 {
		opts.Trees = 100
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = 256
	}
	if opts.SampleSize > len(data) {
		opts.SampleSize = len(data)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	maxDepth := int(math.Ceil(math.Log2(float64(opts.SampleSize)))) + 1

	forest := &IsolationForest{sampleSize: opts.SampleSize}
	for t := 0; t < opts.Trees; t++ {
		sample := make([][]float64, 0, opts.SampleSize)
		for _, i := range rng.Perm(len(data))[:opts.SampleSize] {
			sample = append(sample, data[i])
		}
		forest.trees = append(forest.trees, buildTree(sample, rng, 0, maxDepth))
	}
	return forest
}

func buildTree(data [][]float64, rng *rand.Rand, depth, maxDepth int) *treeNode {
	if len(data) <= 1 || depth >= maxDepth {
		return &treeNode{size: len(data)}
	}

	features := len(data[0])
	feature := rng.Intn(features)

	lo, hi := data[0][feature], data[0][feature]
	for _, point := range data[1:] {
		if point[feature] < lo {
			lo = point[feature]
		}
		if point[feature] > hi {
			hi = point[feature]
		}
	}
	if lo == hi {
		return &treeNode{size: len(data)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, point := range data {
		if point[feature] < split {
			left = append(left, point)
		} else {
			right = append(right, point)
		}
	}

	return &treeNode{
		feature: feature,
		split:   split,
		left:    buildTree(left, rng, depth+1, maxDepth),
		right:   buildTree(right, rng, depth+1, maxDepth),
		size:    len(data),
	}
}

// Score returns the anomaly score in (0, 1); higher is more anomalous.
func (f *IsolationForest) Score(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var total float64
	for _, tree := range f.trees {
		total += pathLength(tree, x, 0)
	}
	avg := total / float64(len(f.trees))
	return math.Pow(2, -avg/expectedPathLength(f.sampleSize))
}

func pathLength(node *treeNode, x []float64, depth float64) float64 {
	if node.left == nil && node.right == nil {
		return depth + expectedPathLength(node.size)
	}
	if x[node.feature] < node.split {
		return pathLength(node.left, x, depth+1)
	}
	return pathLength(node.right, x, depth+1)
}

// expectedPathLength is c(n), the average path length of an unsuccessful
// BST search over n points.
func expectedPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}
