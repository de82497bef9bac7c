package chatstream

// StreamStatus is the pipeline phase reported by status events. It is
// independent of transport state.
type StreamStatus string

const (
	StatusStarting   StreamStatus = "starting"
	StatusRetrieving StreamStatus = "retrieving"
	StatusGenerating StreamStatus = "generating"
	StatusComplete   StreamStatus = "complete"
	StatusError      StreamStatus = "error"
)

// Valid reports whether s is one of the known phases.
func (s StreamStatus) Valid() bool {
	switch s {
	case StatusStarting, StatusRetrieving, StatusGenerating, StatusComplete, StatusError:
		return true
	default:
		return false
	}
}
