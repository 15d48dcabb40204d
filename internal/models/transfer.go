package models

// Direction of a transfer
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// TransferState is the lifecycle state of a transfer
type TransferState string

const (
	TransferQueued    TransferState = "queued"
	TransferActive    TransferState = "active"
	TransferPaused    TransferState = "paused"
	TransferCompleted TransferState = "completed"
	TransferFailed    TransferState = "failed"
	TransferCancelled TransferState = "cancelled"
)

// Terminal reports whether no further transitions can leave s
func (s TransferState) Terminal() bool {
	switch s {
	case TransferCompleted, TransferFailed, TransferCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is legal.
// Queued -> Active -> {Completed, Failed, Cancelled}, Active <-> Paused.
// Any live state may end in a terminal state since polls can miss
// intermediate steps.
func (s TransferState) CanTransition(next TransferState) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next.Terminal() {
		return true
	}
	switch s {
	case TransferQueued:
		return next == TransferActive || next == TransferPaused
	case TransferActive:
		return next == TransferPaused
	case TransferPaused:
		return next == TransferActive
	}
	return false
}

// TransferRecord is the monitor's view of one tool-managed transfer
type TransferRecord struct {
	ID         string        `json:"id"`
	Direction  Direction     `json:"direction"`
	SourcePath string        `json:"source_path"`
	DestPath   string        `json:"dest_path"`
	BytesTotal int64         `json:"bytes_total"`
	BytesDone  int64         `json:"bytes_done"`
	State      TransferState `json:"state"`
}

// Percent returns the completion ratio in the range [0, 100]
func (r TransferRecord) Percent() float64 {
	if r.BytesTotal <= 0 {
		if r.State == TransferCompleted {
			return 100
		}
		return 0
	}
	p := float64(r.BytesDone) / float64(r.BytesTotal) * 100
	if p > 100 {
		return 100
	}
	return p
}
