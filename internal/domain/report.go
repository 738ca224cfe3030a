package domain

// Batch status values reported to the caller.
const (
	StatusOK      = "ok"      // every non-duplicate record inserted
	StatusPartial = "partial" // some records inserted, some errored
	StatusFailed  = "failed"  // nothing inserted and at least one record errored
)

// IngestReport summarises one ingestion batch. It is assembled as a plain
// value while folding over the batch; nothing about it is shared between
// requests. WarningsCount counts validation warnings only; duplicate
// detections are tallied separately under DuplicatesSkipped.
type IngestReport struct {
	Status            string   `json:"status"`
	Received          int      `json:"count_received"`
	Inserted          int      `json:"count_inserted"`
	DuplicatesSkipped int      `json:"duplicates_skipped"`
	WarningsCount     int      `json:"warnings_count"`
	ErrorsCount       int      `json:"errors_count"`
	Errors            []string `json:"errors,omitempty"`
}

// Failed reports whether every record in a non-empty batch errored out.
func (r IngestReport) Failed() bool {
	return r.Received > 0 && r.ErrorsCount == r.Received
}

// finalize derives the status from the tallied counts.
func (r *IngestReport) finalize() {
	switch {
	case r.Failed():
		r.Status = StatusFailed
	case r.ErrorsCount > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusOK
	}
}
