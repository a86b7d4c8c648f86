// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package taskqueue

import "github.com/smyte-run/respkv/kvstore"

// Processor supplies the domain logic a Queue drains against: turning
// due tasks into side effects, and optionally turning an opaque
// key/value pair (as consumed off a log) into the tasks to schedule for
// it.
type Processor interface {
	// ProcessPendingTasks attempts to execute every task in tasks,
	// marking each one Completed that finished successfully. Any writes
	// produced by processing are added to batch so they commit
	// atomically with the completed tasks' deletion.
	ProcessPendingTasks(tasks []*Task, batch kvstore.Batch)

	// GenerateTasks turns one opaque key/value pair (optionally
	// associated with a log offset, -1 if not applicable) into the set
	// of tasks to schedule for it. Not every Processor needs to support
	// this; one that doesn't should return ErrGenerateTasksUnsupported.
	GenerateTasks(opaqueKey string, opaqueValue []byte, logOffset int64) ([]Task, error)
}

// ErrGenerateTasksUnsupported is returned by a Processor whose
// GenerateTasks is not implemented; callers use ScheduleWithWriteBatch
// directly instead.
var ErrGenerateTasksUnsupported = errGenerateTasksUnsupported{}

type errGenerateTasksUnsupported struct{}

func (errGenerateTasksUnsupported) Error() string {
	return "taskqueue: processor does not support generating tasks from opaque key/value pairs"
}
