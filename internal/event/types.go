package event

// Event types published by the execution engine.
const (
	PermissionRequired EventType = "permission.required"
	PermissionResolved EventType = "permission.resolved"
	ProcessStarted     EventType = "process.started"
	ProcessExited      EventType = "process.exited"
	ProcessKilled      EventType = "process.killed"
	BatchCompleted     EventType = "batch.completed"
)

// PermissionRequiredData is the data for permission.required events. An
// interactive frontend resolves the request by calling Checker.Respond with
// the carried ID.
type PermissionRequiredData struct {
	ID        string   `json:"id"`
	SessionID string   `json:"sessionID"`
	Patterns  []string `json:"patterns"`
	Command   string   `json:"command,omitempty"`
	Title     string   `json:"title"`
}

// PermissionResolvedData is the data for permission.resolved events.
type PermissionResolvedData struct {
	ID      string `json:"id"`
	Reply   string `json:"reply"` // "once" | "always" | "reject"
	Granted bool   `json:"granted"`
}

// ProcessStartedData is the data for process.started events.
type ProcessStartedData struct {
	ID      string `json:"id"`
	PID     int    `json:"pid"`
	Command string `json:"command"`
}

// ProcessExitedData is the data for process.exited events.
type ProcessExitedData struct {
	ID             string `json:"id"`
	ExitCode       int    `json:"exitCode"`
	TimedOut       bool   `json:"timedOut"`
	Aborted        bool   `json:"aborted"`
	DurationMillis int64  `json:"durationMillis"`
}

// ProcessKilledData is the data for process.killed events, published when the
// kill path runs after a timeout or abort.
type ProcessKilledData struct {
	ID       string `json:"id"`
	PID      int    `json:"pid"`
	TimedOut bool   `json:"timedOut"`
}

// BatchCompletedData is the data for batch.completed events.
type BatchCompletedData struct {
	Total          int   `json:"total"`
	Succeeded      int   `json:"succeeded"`
	Failed         int   `json:"failed"`
	DurationMillis int64 `json:"durationMillis"`
}
