package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Process-wide signal guard. Every adopted job is tracked here; on
// SIGINT or SIGTERM all live jobs drop to aborted before the process
// exits, so a killed submission never leaves records stuck in running.
var guard = &signalGuard{jobs: make(map[*Job]struct{})}

type signalGuard struct {
	mu   sync.Mutex
	once sync.Once
	jobs map[*Job]struct{}
}

func registerWithGuard(j *Job) {
	guard.register(j)
}

func unregisterFromGuard(j *Job) {
	guard.unregister(j)
}

func (g *signalGuard) register(j *Job) {
	g.mu.Lock()
	g.jobs[j] = struct{}{}
	g.mu.Unlock()
	g.once.Do(g.install)
}

func (g *signalGuard) unregister(j *Job) {
	g.mu.Lock()
	delete(g.jobs, j)
	g.mu.Unlock()
}

func (g *signalGuard) install() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-ch
		g.abortAll()
		signal.Stop(ch)
		// Re-raise so the process exits with the conventional code.
		if p, err := os.FindProcess(os.Getpid()); err == nil {
			_ = p.Signal(sig)
		}
		time.Sleep(time.Second)
		os.Exit(1)
	}()
}

// abortAll drops every tracked job to aborted. Each drop refreshes from
// the store first, so jobs that already finished or parked as suspended
// keep their status.
func (g *signalGuard) abortAll() {
	g.mu.Lock()
	jobs := make([]*Job, 0, len(g.jobs))
	for j := range g.jobs {
		jobs = append(jobs, j)
	}
	g.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, j := range jobs {
		j.dropStatusToAborted(ctx)
	}
}
