// Package prewarm runs independent texture-cache warm-up tasks across a
// bounded worker pool, grounded on the teacher's ordered worker/channel
// pipeline in pkg/evrmanifest/repack.go, simplified: prewarming has no
// ordering requirement the way package repacking does (spec.md §5: "a
// blocking pool is sufficient"), so this is a plain fan-out/fan-in instead
// of the teacher's chan-of-chan ordered delivery.
package prewarm

import (
	"runtime"
	"sync"
)

// Task is one independent unit of work: reads only its own source and
// writes only its own cache file, per spec.md §5's shared-resource policy.
type Task struct {
	Run func() error
}

// Run executes tasks across workers concurrent goroutines (runtime.NumCPU()
// when workers <= 0) and blocks until every task completes. It returns the
// first error encountered, if any; all tasks still run to completion (a
// partial failure leaves no guaranteed state, per spec.md §5's cancellation
// policy, so there is nothing to gain from stopping early).
func Run(tasks []Task, workers int) error {
	if len(tasks) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	jobs := make(chan Task)
	errs := make(chan error, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				errs <- t.Run()
			}
		}()
	}

	for _, t := range tasks {
		jobs <- t
	}
	close(jobs)
	wg.Wait()
	close(errs)

	var first error
	for err := range errs {
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
