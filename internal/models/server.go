package models

import "time"

// ServerInfo is returned by the /server_info endpoint
type ServerInfo struct {
	Uptime        float64         `json:"uptime"`
	IdleTime      float64         `json:"idle_time"`
	Account       string          `json:"account,omitempty"`
	Ready         bool            `json:"ready"`
	Policy        string          `json:"policy"`
	DaemonRunning bool            `json:"daemon_running"`
	Resources     SystemResources `json:"resources"`
}

// SystemResources describes the host process
type SystemResources struct {
	CPUCount      int     `json:"cpu_count"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryRSS     uint64  `json:"memory_rss"`
	MemoryPercent float32 `json:"memory_percent"`
	DaemonPID     int32   `json:"daemon_pid,omitempty"`
	DaemonRSS     uint64  `json:"daemon_rss,omitempty"`
}

// SelectionRequest carries paths for the selection endpoints
type SelectionRequest struct {
	Paths []string `json:"paths"`
}

// ApplySelectionRequest applies one operation to every marked path
type ApplySelectionRequest struct {
	Kind        OperationKind `json:"kind" binding:"required"`
	Destination string        `json:"destination,omitempty"`
	LocalPath   string        `json:"local_path,omitempty"`
	Clear       bool          `json:"clear,omitempty"`
}

// ErrorResponse is the JSON body of a failed request
type ErrorResponse struct {
	Error      string    `json:"error"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ListResponse is returned by /ls. Error is set when a refresh failed and
// the listing shown is the retained one.
type ListResponse struct {
	Listing DirectoryListing `json:"listing"`
	Error   *ErrorResponse   `json:"error,omitempty"`
}

// OperationResponse is returned by /operations and /selection/apply
type OperationResponse struct {
	Outcome *OperationOutcome `json:"outcome,omitempty"`
	Error   *ErrorResponse    `json:"error,omitempty"`
}

// SelectionResponse lists the marked paths
type SelectionResponse struct {
	Paths []string `json:"paths"`
	Count int      `json:"count"`
}

// TransfersResponse lists the reconciled transfer records
type TransfersResponse struct {
	Transfers []TransferRecord `json:"transfers"`
}
