package util

import (
	"io"
)

// CleanupTasks is a list of actions to undo a partially completed construction. Constructors add a task
// for every resource they acquire, and either call Run if a later step fails or Clear once ownership has
// passed to the finished object.
type CleanupTasks []func()

// AddCloser adds a task that closes c, ignoring any error.
func (t *CleanupTasks) AddCloser(c io.Closer) {
	*t = append(*t, func() { _ = c.Close() })
}

// AddFunc adds an arbitrary task.
func (t *CleanupTasks) AddFunc(f func()) {
	*t = append(*t, f)
}

// Clear discards all tasks without running them.
func (t *CleanupTasks) Clear() {
	*t = nil
}

// Run executes all tasks, most recently added first, and then clears the list.
func (t *CleanupTasks) Run() {
	for i := len(*t) - 1; i >= 0; i-- {
		(*t)[i]()
	}
	*t = nil
}
