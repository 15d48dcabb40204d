package models

// PathFailure records why a single path in a request failed
type PathFailure struct {
	Path       string    `json:"path"`
	Kind       ErrorKind `json:"kind"`
	Diagnostic string    `json:"diagnostic,omitempty"`
}

// OperationOutcome is the result of one dispatched request.
// Succeeded, Failed and NotAttempted partition the request's paths.
type OperationOutcome struct {
	ID           string        `json:"id"`
	Kind         OperationKind `json:"kind"`
	Succeeded    []string      `json:"succeeded"`
	Failed       []PathFailure `json:"failed,omitempty"`
	NotAttempted []string      `json:"not_attempted,omitempty"`
	Media        []MediaInfo   `json:"media,omitempty"`
	// Invalidated lists the directory listings marked stale by this operation
	Invalidated []string `json:"invalidated,omitempty"`
}

// OK reports whether every path succeeded
func (o *OperationOutcome) OK() bool {
	return len(o.Failed) == 0 && len(o.NotAttempted) == 0
}

// MediaInfo describes one media file as reported by the tool
type MediaInfo struct {
	Path     string  `json:"path"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	FPS      float64 `json:"fps,omitempty"`
	Playtime string  `json:"playtime,omitempty"`
}

// StorageLocation is one row of the storage usage report
type StorageLocation struct {
	Name    string `json:"name"`
	Bytes   int64  `json:"bytes"`
	Files   int    `json:"files"`
	Folders int    `json:"folders"`
}

// StorageOverview summarises account usage
type StorageOverview struct {
	Locations    []StorageLocation `json:"locations"`
	UsedBytes    int64             `json:"used_bytes"`
	UsedPercent  float64           `json:"used_percent"`
	TotalBytes   int64             `json:"total_bytes"`
	VersionBytes int64             `json:"version_bytes"`
}
