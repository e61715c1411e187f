package service

import (
	"context"
	"log"
	"sync"
)

// Runner launches detached background work that outlives the webhook
// request. Jobs get a fresh context so they are not cancelled when the
// request returns; Wait exists for graceful shutdown and tests.
type Runner struct {
	wg sync.WaitGroup
}

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Go(name string, fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Background task %s panicked: %v", name, rec)
			}
		}()
		fn(context.Background())
	}()
}

// Wait blocks until all launched tasks finish.
func (r *Runner) Wait() {
	r.wg.Wait()
}
