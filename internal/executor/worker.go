package executor

import (
	"github.com/vk/tickgrid/internal/ctxlog"
)

// worker is the core processing loop for a single pool worker.
func (p *ThreadPool) worker(workerID int) {
	defer p.workers.Done()
	p.logger.Debug("Worker started.", "workerID", workerID)

	for j := range p.jobs {
		name := j.plan.Systems[j.index].Name
		workerLogger := ctxlog.FromContext(j.ctx).With("workerID", workerID, "system", name)

		workerLogger.Debug("Worker picked up system for execution.")
		err := j.plan.Invoke(j.ctx, j.index, j.st)
		if err != nil {
			workerLogger.Error("System execution failed.", "error", err)
		} else {
			workerLogger.Debug("System execution succeeded.")
		}
		j.done(err)
	}
	p.logger.Debug("Worker finished.", "workerID", workerID)
}
