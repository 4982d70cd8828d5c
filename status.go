package taskpool

// Status is a point-in-time summary of a scheduler. Every field is
// computed from live state when Status is called.
type Status struct {
	TotalTasks        int `json:"totalTasks"`
	HighTasks         int `json:"highTasks"`
	NormalTasks       int `json:"normalTasks"`
	PendingTasks      int `json:"pendingTasks"`
	ProcessingTasks   int `json:"processingTasks"`
	CompletedTasks    int `json:"completedTasks"`
	Workers           int `json:"workers"`
	IdleWorkers       int `json:"idleWorkers"`
	ProcessingWorkers int `json:"processingWorkers"`
}

// Busy reports whether any task is still pending or processing.
func (s Status) Busy() bool { return s.PendingTasks > 0 || s.ProcessingTasks > 0 }
