// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskqueue

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/pkg/log"
)

// checkInterval is how often the background worker wakes up to look for
// due tasks once it has drained everything currently due.
const checkInterval = 1 * time.Second

// scanBatchSize caps both how many tasks one background pass dispatches
// to the Processor and how many a single Iterate call materializes.
const scanBatchSize = 10000

// Queue is a column-family-backed scheduled task queue. Schedule*
// methods are safe to call from any number of goroutines; the
// background drain loop is started and stopped explicitly via
// Start/Stop.
type Queue struct {
	cf        string
	engine    kvstore.Engine
	processor Processor

	// outstanding is incremented at schedule time and decremented only
	// once a batch of completions has actually committed. It may
	// overcount relative to the database if the process crashes between
	// the increment and a commit that never lands — that is intentional,
	// matching the underlying design's preference for an imprecise,
	// cheap counter over a precise, synchronized one; Outstanding
	// documents this explicitly.
	outstanding atomic.Int64

	mu        sync.Mutex
	scheduler gocron.Scheduler
	started   bool
}

// NewQueue returns a queue backed by column family cf of engine, draining
// due tasks to processor.
func NewQueue(engine kvstore.Engine, cf string, processor Processor) *Queue {
	return &Queue{cf: cf, engine: engine, processor: processor}
}

// ScheduleWithWriteBatch adds a put for task to batch and increments the
// outstanding counter. It is safe and cheap to call repeatedly against
// the same batch for different tasks; the caller is responsible for
// committing it.
func (q *Queue) ScheduleWithWriteBatch(task Task, batch kvstore.Batch) {
	batch.Put(q.cf, task.key(), task.Value)
	q.outstanding.Add(1)
}

// ScheduleBatchWithWriteBatch is ScheduleWithWriteBatch for a slice of
// tasks.
func (q *Queue) ScheduleBatchWithWriteBatch(tasks []Task, batch kvstore.Batch) {
	for _, t := range tasks {
		q.ScheduleWithWriteBatch(t, batch)
	}
}

// ScheduleOpaqueWithWriteBatch asks the processor to turn one opaque
// key/value pair into the tasks to schedule for it, and adds puts for
// all of them to batch. It returns the number of tasks the processor
// reported generating, which may exceed the number actually scheduled
// if the processor produced tasks with colliding keys.
func (q *Queue) ScheduleOpaqueWithWriteBatch(opaqueKey string, opaqueValue []byte, logOffset int64, batch kvstore.Batch) (int, error) {
	tasks, err := q.processor.GenerateTasks(opaqueKey, opaqueValue, logOffset)
	if err != nil {
		return 0, err
	}
	q.ScheduleBatchWithWriteBatch(tasks, batch)
	return len(tasks), nil
}

// Schedule commits task as a single atomic write.
func (q *Queue) Schedule(task Task) error {
	b := q.engine.NewBatch()
	q.ScheduleWithWriteBatch(task, b)
	if err := q.engine.Commit(b); err != nil {
		log.Errorf("taskqueue: failed to schedule task: %s", err)
		return err
	}
	return nil
}

// ScheduleOpaque generates and schedules tasks for one opaque key/value
// pair as a single atomic write, returning the number of tasks
// generated.
func (q *Queue) ScheduleOpaque(opaqueKey string, opaqueValue []byte, logOffset int64) (int, error) {
	b := q.engine.NewBatch()
	n, err := q.ScheduleOpaqueWithWriteBatch(opaqueKey, opaqueValue, logOffset, b)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, nil
	}
	if err := q.engine.Commit(b); err != nil {
		log.Errorf("taskqueue: failed to schedule tasks for opaque key/value pair: %s", err)
		return 0, err
	}
	return n, nil
}

// Outstanding returns the possibly-overcounted outstanding task count
// maintained in memory. Use OutstandingAccurateSlow for an exact count.
func (q *Queue) Outstanding() int64 {
	return q.outstanding.Load()
}

// OutstandingAccurateSlow performs a full scan of the column family to
// compute an exact outstanding count. It can be slow when many tasks are
// pending.
func (q *Queue) OutstandingAccurateSlow() (int64, error) {
	tasks, err := q.ScanPendingTasks(math.MaxInt64, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(tasks)), nil
}

// ScanPendingTasks returns tasks scheduled strictly before
// maxTimestampMs, in schedule order, up to limit tasks (limit <= 0
// means unbounded). maxTimestampMs is an exclusive bound, so a caller
// that wants tasks due as of now must pass now+1; Start's background
// loop does exactly that. Tasks are not removed from the store by
// scanning alone.
func (q *Queue) ScanPendingTasks(maxTimestampMs int64, limit int) ([]Task, error) {
	upper := encodeTimestamp(maxTimestampMs)
	kvs, err := q.engine.Iterate(q.cf, nil, upper, limit)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, len(kvs))
	for i, kv := range kvs {
		ts, dataKey := splitKey(kv.Key)
		tasks[i] = Task{ScheduledTimeMs: ts, DataKey: dataKey, Value: kv.Value}
	}
	return tasks, nil
}

// BatchProcessing scans up to one batch of tasks scheduled strictly
// before maxTimestampMs, hands them to the Processor, and atomically commits
// the processor's writes together with the deletion of every task the
// processor marked Completed. It returns how many tasks were scanned,
// which equals scanBatchSize exactly when more tasks may remain.
func (q *Queue) BatchProcessing(maxTimestampMs int64) (int, error) {
	tasks, err := q.ScanPendingTasks(maxTimestampMs, scanBatchSize)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		return 0, nil
	}

	taskPtrs := make([]*Task, len(tasks))
	for i := range tasks {
		taskPtrs[i] = &tasks[i]
	}

	batch := q.engine.NewBatch()
	q.processor.ProcessPendingTasks(taskPtrs, batch)

	completed := 0
	for _, t := range taskPtrs {
		if t.Completed {
			completed++
			batch.Delete(q.cf, t.key())
		}
	}

	if err := q.engine.Commit(batch); err != nil {
		// Completion is an invariant, not a recoverable condition: the
		// in-memory outstanding counter and the database would otherwise
		// silently diverge in a way nothing downstream could detect.
		log.Abortf("taskqueue: failed to persist results of scheduled task processing: %s", err)
	}

	q.outstanding.Add(-int64(completed))
	if completed < len(tasks) {
		log.Warnf("taskqueue: %d out of %d pending tasks not completed", len(tasks)-completed, len(tasks))
	}
	return len(tasks), nil
}

// Start computes the accurate outstanding count and launches the
// background worker: every checkInterval, it drains BatchProcessing
// calls (each scanning up to "now+1ms") until a call returns fewer than
// scanBatchSize tasks, then sleeps again.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		log.Abort("taskqueue: queue already started")
	}

	n, err := q.OutstandingAccurateSlow()
	if err != nil {
		return err
	}
	q.outstanding.Store(n)

	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	q.scheduler = s

	_, err = s.NewJob(gocron.DurationJob(checkInterval), gocron.NewTask(func() {
		for {
			maxTimestampMs := time.Now().UnixMilli() + 1
			n, err := q.BatchProcessing(maxTimestampMs)
			if err != nil {
				log.Errorf("taskqueue: batch processing failed: %s", err)
				return
			}
			if n < scanBatchSize {
				return
			}
		}
	}))
	if err != nil {
		return err
	}

	s.Start()
	q.started = true
	log.Info("taskqueue: background worker started")
	return nil
}

// Stop halts the background worker loop by shutting down its scheduler.
// Destroy adds no waiting of its own beyond this call.
func (q *Queue) Stop() {
	q.mu.Lock()
	s := q.scheduler
	q.mu.Unlock()
	if s != nil {
		if err := s.Shutdown(); err != nil {
			log.Errorf("taskqueue: error shutting down scheduler: %s", err)
		}
	}
}

// Destroy aborts if the queue was never started, and otherwise calls Stop.
func (q *Queue) Destroy() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		log.Abort("taskqueue: queue was never started")
	}
	q.mu.Unlock()
	q.Stop()
	log.Info("taskqueue: background worker destroyed")
}
