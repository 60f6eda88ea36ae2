package jobstore

import "time"

// Kind distinguishes single-file submissions from folder submissions.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// State tracks an ingestion job's lifecycle in the ledger.
type State string

const (
	// StateSubmitted means the cluster job was applied and awaits
	// completion.
	StateSubmitted State = "submitted"
	// StateVerified means the job finished and the index confirmed (or
	// was credited with) the embeddings.
	StateVerified State = "verified"
	// StateFailed means submission or the job itself failed.
	StateFailed State = "failed"
	// StateTimedOut means the completion poll window elapsed without a
	// verdict.
	StateTimedOut State = "timed_out"
)

// Job is one ledger row.
type Job struct {
	ID            int64     `json:"id"`
	RunID         string    `json:"run_id"`
	Kind          Kind      `json:"kind"`
	SourcePath    string    `json:"source_path"`
	Collection    string    `json:"collection"`
	CollectionSeq int       `json:"collection_seq,omitempty"`
	JobName       string    `json:"job_name"`
	FileCount     int       `json:"file_count"`
	State         State     `json:"state"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.State != StateSubmitted
}
