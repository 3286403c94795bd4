package cron

import (
	"context"
	"fmt"
)

// Job is one unit of scheduled work. Run is called once per cycle.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry keeps jobs in the order they run. Names key metrics and logs, so
// they must be unique.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{names: make(map[string]struct{}, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil cron job")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if r.names == nil {
		r.names = make(map[string]struct{})
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy so callers cannot reorder the schedule.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
