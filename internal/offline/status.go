package offline

// WorkerStatus is a snapshot of one worker's state.
type WorkerStatus struct {
	ID       string
	Version  string
	State    State
	InFlight int
}

// Status is a snapshot of a Registration.
type Status struct {
	// Active is the worker that serves requests, or nil if none has activated yet.
	Active *WorkerStatus
	// Waiting is the installed worker that will take over next, if any.
	Waiting *WorkerStatus
	// StorageKind is the name of the storage backend.
	StorageKind string
	// StoreTags lists the version tags of all existing stores, sorted.
	StoreTags []string
	// StorageAvailable is false if the stores could not be listed.
	StorageAvailable bool
}

func workerStatus(w *Worker) *WorkerStatus {
	if w == nil {
		return nil
	}
	return &WorkerStatus{ID: w.ID(), Version: w.Version(), State: w.State(), InFlight: w.InFlight()}
}
