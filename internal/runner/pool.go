package runner

import (
	"sync"

	"github.com/entropix/gauntlet/internal/result"
)

type Job func() *result.TaskResult

// RunPool executes jobs with at most maxWorkers concurrently and collects
// every result. Tasks share no mutable state, so the only synchronization is
// around the result slice.
func RunPool(maxWorkers int, jobs []Job) []*result.TaskResult {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var (
		mu      sync.Mutex
		results []*result.TaskResult
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, maxWorkers)

	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }()
			if r := j(); r != nil {
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()
	return results
}
