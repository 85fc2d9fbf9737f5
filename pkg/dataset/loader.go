package dataset

import (
	"fmt"
	"math/rand"
)

// LoaderConfig controls batching.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	DropLast  bool // drop a final batch smaller than BatchSize
	Seed      int64
}

// Batch is a group of windows. Inputs[i] and Targets[i] belong together.
type Batch struct {
	Inputs  [][]int
	Targets [][]int
}

// Size returns the number of windows in the batch.
func (b Batch) Size() int {
	return len(b.Inputs)
}

// Loader groups dataset windows into batches.
type Loader struct {
	ds  *SlidingWindow
	cfg LoaderConfig
	rng *rand.Rand
}

// NewLoader creates a Loader over ds.
func NewLoader(ds *SlidingWindow, cfg LoaderConfig) (*Loader, error) {
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	return &Loader{ds: ds, cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// Batches returns one epoch of batches. With Shuffle set, every call draws a
// new order from the loader's seeded generator.
func (l *Loader) Batches() []Batch {
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	var batches []Batch
	for start := 0; start < len(order); start += l.cfg.BatchSize {
		end := min(start+l.cfg.BatchSize, len(order))
		if l.cfg.DropLast && end-start < l.cfg.BatchSize {
			break
		}

		b := Batch{
			Inputs:  make([][]int, 0, end-start),
			Targets: make([][]int, 0, end-start),
		}
		for _, idx := range order[start:end] {
			b.Inputs = append(b.Inputs, l.ds.inputs[idx])
			b.Targets = append(b.Targets, l.ds.targets[idx])
		}
		batches = append(batches, b)
	}
	return batches
}
