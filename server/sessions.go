package main

import (
	"github.com/meikuraledutech/neurons/train"
	sync "github.com/sasha-s/go-deadlock"
)

// trainingRun is a session started from a stored network.
type trainingRun struct {
	Network string
	Session *train.Session
}

// registry keeps the training sessions started by this process.
type registry struct {
	mu   sync.Mutex
	runs map[string]*trainingRun
}

func newRegistry() *registry {
	return &registry{runs: make(map[string]*trainingRun)}
}

func (r *registry) add(run *trainingRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.Session.ID] = run
}

func (r *registry) get(id string) (*trainingRun, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

// remove stops the session and forgets it.
func (r *registry) remove(id string) bool {
	r.mu.Lock()
	run, ok := r.runs[id]
	delete(r.runs, id)
	r.mu.Unlock()
	if ok {
		run.Session.Stop()
	}
	return ok
}

// stopAll cancels every running session.
func (r *registry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		run.Session.Stop()
	}
}
