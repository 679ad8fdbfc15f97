package models

// ChunkStatus is the lifecycle state of a transcoding chunk.
// It serializes as its integer value, which is what the API has
// always reported.
type ChunkStatus int

const (
	ChunkPending ChunkStatus = iota
	ChunkProcessing
	ChunkCompleted
	ChunkFailed
)

func (s ChunkStatus) String() string {
	switch s {
	case ChunkPending:
		return "pending"
	case ChunkProcessing:
		return "processing"
	case ChunkCompleted:
		return "completed"
	case ChunkFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChunkInfo is the record kept for one transcoding job. The worker
// executing the job is its only writer until it reaches a terminal
// status; after that it is immutable except for deletion.
type ChunkInfo struct {
	ID           string      `json:"id"`
	FilePath     string      `json:"-"`
	Size         int64       `json:"size"`
	Status       ChunkStatus `json:"status"`
	ErrorMessage string      `json:"error,omitempty"`

	// Metadata populated by the probe, best-effort.
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration"`
	Codec    string  `json:"codec"`
}
