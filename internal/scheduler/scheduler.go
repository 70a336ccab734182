// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"sync"
)

// Task names the follow-up work a workflow operation defers instead of
// performing inline: cancelling the losing proposals after a confirm,
// or notifying an associate pool about a fresh demand.
type Task struct {
	Name      string
	EntityKey string
	Payload   map[string]interface{}
}

// Scheduler hands tasks to an external process engine. Enqueue returns
// once the task is durably accepted, not once it has run.
type Scheduler interface {
	Enqueue(ctx context.Context, task Task) error
}

// Recorder keeps enqueued tasks in memory for tests.
type Recorder struct {
	mu    sync.Mutex
	tasks []Task
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Enqueue(_ context.Context, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *Recorder) Tasks() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Named returns the recorded tasks carrying the given name.
func (r *Recorder) Named(name string) []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Task
	for _, task := range r.tasks {
		if task.Name == name {
			out = append(out, task)
		}
	}
	return out
}
