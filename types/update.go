package types

// JobStatus is the state reported by GET /api/db/status
type JobStatus string

const (
	JobStatusIdle           JobStatus = "idle"
	JobStatusRunning        JobStatus = "running"
	JobStatusAlreadyRunning JobStatus = "already_running"
	JobStatusUnknown        JobStatus = "unknown"
)

// StatusReply is the JSON body of the status and trigger endpoints
type StatusReply struct {
	Status string `json:"status"`
}

// TriggerOutcome describes how the update trigger call ended
type TriggerOutcome string

const (
	TriggerStarted           TriggerOutcome = "started"
	TriggerAlreadyRunning    TriggerOutcome = "already_running"
	TriggerUnauthorized      TriggerOutcome = "unauthorized"
	TriggerFailed            TriggerOutcome = "failed"
	TriggerTimedOutAtRequest TriggerOutcome = "timed_out_at_request"
)

// Credentials are the admin login sent to POST /api/login
type Credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}
