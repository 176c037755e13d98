package pipeline

import (
	"context"
	"sync"

	"github.com/dgallion1/poledger/internal/ledger"
	"github.com/dgallion1/poledger/internal/source"
	"golang.org/x/sync/errgroup"
)

// Input is one document of a batch.
type Input struct {
	Filename string
	Data     []byte
	Source   *source.Source
}

// Result is the outcome of one batch document. Exactly one of Doc and Err
// is set.
type Result struct {
	Filename string
	Doc      *ledger.Document
	Err      error
}

// RunBatch extracts inputs concurrently, at most limit at a time. A failed
// document does not affect the others. Results are in input order. done, if
// set, is called once per document as it finishes; calls are serialized.
func RunBatch(ctx context.Context, e *Extractor, inputs []Input, limit int, done func(i int, r Result)) []Result {
	results := make([]Result, len(inputs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, in := range inputs {
		g.Go(func() error {
			doc, err := e.Extract(ctx, in.Filename, in.Data, in.Source, nil)
			r := Result{Filename: in.Filename, Doc: doc, Err: err}
			results[i] = r
			if done != nil {
				mu.Lock()
				done(i, r)
				mu.Unlock()
			}
			return nil
		})
	}
	// Goroutines never return an error; failures live in results.
	_ = g.Wait()
	return results
}
