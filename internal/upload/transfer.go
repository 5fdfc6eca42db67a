package upload

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"uploadflow/internal/staging"
)

type transferTask struct {
	file staging.File
	slot UploadSlot
}

// launch starts the transfers of one batch in the background. With no
// concurrency bound all of them start at once.
func (o *Orchestrator) launch(ctx context.Context, batch int, tasks []transferTask) {
	if len(tasks) == 0 {
		return
	}

	limit := o.opts.Concurrency
	if limit <= 0 {
		limit = -1
	}

	go func() {
		var g errgroup.Group
		g.SetLimit(limit)

		for _, task := range tasks {
			g.Go(func() error {
				o.transfer(ctx, batch, task)
				return nil
			})
		}

		_ = g.Wait()
	}()
}

// transfer reads the whole file, PUTs it to its slot and reports exactly one
// result for it.
func (o *Orchestrator) transfer(ctx context.Context, batch int, task transferTask) {
	name := task.file.Name
	result := transferredMsg{batch: batch, name: name, fileUUID: task.slot.FileUUID}

	data, err := task.file.ReadAll()
	if err != nil {
		result.err = fmt.Errorf("reading file: %w", err)
		o.post(result)

		return
	}

	sample := o.progressSampler()
	report := func(fraction float64) {
		sample(fraction, func() {
			o.post(progressMsg{batch: batch, name: name, fraction: fraction})
		})
	}

	if err := o.transport.Put(ctx, task.slot.UploadURL, data, report); err != nil {
		result.err = err
	}

	o.post(result)
}

// progressSampler returns a per-transfer throttle. The final sample always
// passes.
func (o *Orchestrator) progressSampler() func(fraction float64, f func()) {
	if o.opts.ProgressInterval <= 0 {
		return func(_ float64, f func()) { f() }
	}

	s := &rate.Sometimes{Interval: o.opts.ProgressInterval}

	return func(fraction float64, f func()) {
		if fraction >= 1 {
			f()
			return
		}
		s.Do(f)
	}
}
