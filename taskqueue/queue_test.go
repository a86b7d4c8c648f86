// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smyte-run/respkv/kvstore"
	"github.com/smyte-run/respkv/kvstore/memengine"
)

// completeAllProcessor marks every task it sees as completed, recording
// the tasks it processed for assertions.
type completeAllProcessor struct {
	mu   sync.Mutex
	seen []string
}

func (p *completeAllProcessor) ProcessPendingTasks(tasks []*Task, batch kvstore.Batch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range tasks {
		p.seen = append(p.seen, t.DataKey)
		t.Completed = true
	}
}

func (p *completeAllProcessor) GenerateTasks(opaqueKey string, opaqueValue []byte, logOffset int64) ([]Task, error) {
	t, err := NewTask(7, opaqueKey, opaqueValue)
	if err != nil {
		return nil, err
	}
	return []Task{t}, nil
}

// partialProcessor completes only tasks whose DataKey is in complete.
type partialProcessor struct {
	complete map[string]bool
}

func (p *partialProcessor) ProcessPendingTasks(tasks []*Task, batch kvstore.Batch) {
	for _, t := range tasks {
		if p.complete[t.DataKey] {
			t.Completed = true
		}
	}
}

func (p *partialProcessor) GenerateTasks(string, []byte, int64) ([]Task, error) {
	return nil, ErrGenerateTasksUnsupported
}

func TestNewTaskRejectsEmptyDataKey(t *testing.T) {
	_, err := NewTask(1, "", []byte("v"))
	assert.ErrorIs(t, err, ErrEmptyDataKey)
}

func TestScheduleThenScanFindsTask(t *testing.T) {
	engine := memengine.New()
	q := NewQueue(engine, "tasks", &completeAllProcessor{})

	task, err := NewTask(100, "a", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, q.Schedule(task))
	assert.Equal(t, int64(1), q.Outstanding())

	// maxTimestampMs acts as an exclusive upper bound (so that tasks
	// scheduled in the current millisecond aren't missed, callers scan up
	// to now+1), so a task scheduled at 100 requires maxTimestampMs > 100
	// to be found.
	tasks, err := q.ScanPendingTasks(101, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a", tasks[0].DataKey)
	assert.Equal(t, "payload", string(tasks[0].Value))
}

func TestScanPendingTasksExcludesFutureTasks(t *testing.T) {
	engine := memengine.New()
	q := NewQueue(engine, "tasks", &completeAllProcessor{})

	early, _ := NewTask(100, "a", nil)
	late, _ := NewTask(200, "b", nil)
	require.NoError(t, q.Schedule(early))
	require.NoError(t, q.Schedule(late))

	tasks, err := q.ScanPendingTasks(150, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a", tasks[0].DataKey)
}

func TestScanPendingTasksOrdersByScheduledTime(t *testing.T) {
	engine := memengine.New()
	q := NewQueue(engine, "tasks", &completeAllProcessor{})

	for _, dk := range []string{"c", "a", "b"} {
		ts := map[string]int64{"a": 10, "b": 20, "c": 30}[dk]
		task, _ := NewTask(ts, dk, nil)
		require.NoError(t, q.Schedule(task))
	}

	tasks, err := q.ScanPendingTasks(100, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{tasks[0].DataKey, tasks[1].DataKey, tasks[2].DataKey})
}

func TestBatchProcessingDeletesCompletedTasks(t *testing.T) {
	engine := memengine.New()
	proc := &completeAllProcessor{}
	q := NewQueue(engine, "tasks", proc)

	task, _ := NewTask(50, "x", []byte("v"))
	require.NoError(t, q.Schedule(task))

	n, err := q.BatchProcessing(100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(0), q.Outstanding())
	assert.Equal(t, []string{"x"}, proc.seen)

	remaining, err := q.ScanPendingTasks(100, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestBatchProcessingLeavesIncompleteTasksForRetry(t *testing.T) {
	engine := memengine.New()
	proc := &partialProcessor{complete: map[string]bool{"done": true}}
	q := NewQueue(engine, "tasks", proc)

	done, _ := NewTask(10, "done", nil)
	pending, _ := NewTask(20, "pending", nil)
	require.NoError(t, q.Schedule(done))
	require.NoError(t, q.Schedule(pending))

	n, err := q.BatchProcessing(100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(1), q.Outstanding())

	remaining, err := q.ScanPendingTasks(100, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "pending", remaining[0].DataKey)
}

func TestScheduleOpaqueGeneratesAndSchedulesTasks(t *testing.T) {
	engine := memengine.New()
	q := NewQueue(engine, "tasks", &completeAllProcessor{})

	n, err := q.ScheduleOpaque("opaque-key", []byte("opaque-value"), -1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks, err := q.ScanPendingTasks(8, 0)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "opaque-key", tasks[0].DataKey)
	assert.Equal(t, "opaque-value", string(tasks[0].Value))
}

func TestOutstandingAccurateSlowMatchesActualCount(t *testing.T) {
	engine := memengine.New()
	q := NewQueue(engine, "tasks", &completeAllProcessor{})

	for i, dk := range []string{"a", "b", "c"} {
		task, _ := NewTask(int64(i+1), dk, nil)
		require.NoError(t, q.Schedule(task))
	}

	n, err := q.OutstandingAccurateSlow()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
