package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one housekeeping task of the cron worker. Name doubles as the
// metrics label and the -jobs flag value, so it must be unique.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in run order.
type Registry struct {
	jobs  []Job
	index map[string]int
}

// NewRegistry registers jobs in order. Nil jobs are skipped; duplicate names
// are an error.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{index: map[string]int{}}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.index[name] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// Only narrows the registry to the named jobs, keeping registration order.
// An empty selection keeps everything.
func (r *Registry) Only(names ...string) (*Registry, error) {
	want := map[string]bool{}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			want[n] = true
		}
	}
	if len(want) == 0 {
		return r, nil
	}
	for n := range want {
		if _, ok := r.index[n]; !ok {
			return nil, fmt.Errorf("unknown cron job %q", n)
		}
	}
	out := &Registry{index: map[string]int{}}
	for _, job := range r.jobs {
		if want[job.Name()] {
			_ = out.Register(job)
		}
	}
	return out, nil
}
