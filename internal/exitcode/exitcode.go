package exitcode

const (
	Success        = 0
	RuntimeFailure = 1
	InvalidUsage   = 2
	InvalidConfig  = 3
	// JobFailed means the backend reported error or cancelled for a job.
	JobFailed      = 4
	PartialSuccess = 5
	Interrupted    = 130
)
