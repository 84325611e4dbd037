package workspace

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds LoadAll when no worker count is given.
const DefaultWorkers = 4

// Job is one model of a batch. Model is nil when Err is set.
type Job struct {
	Path  string
	Model *Model
	Err   error
}

// LoadAll loads the models of paths, at most workers at a time, and calls fn
// for each loaded model from the worker that loaded it. An error returned
// by fn is recorded on the job. Jobs keep the order of paths. Paths not
// started before ctx is done fail with the context error.
func LoadAll(ctx context.Context, paths []string, workers int, fn func(ctx context.Context, m *Model) error, opts ...Option) []Job {
	jobs := make([]Job, len(paths))
	if len(paths) == 0 {
		return jobs
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if len(paths) < workers {
		workers = len(paths)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, path := range paths {
		job := &jobs[i]
		job.Path = path
		// failures stay on their job, the group never sees an error
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				job.Err = err
				return nil
			}
			m, err := Load(ctx, job.Path, opts...)
			if err != nil {
				job.Err = err
				return nil
			}
			job.Model = m
			if fn != nil {
				job.Err = fn(ctx, m)
			}
			return nil
		})
	}
	_ = g.Wait()
	return jobs
}
