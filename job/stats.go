package job

// Stats is a point-in-time accounting of the dispatcher's job table.
// Total always equals the sum of the five state counts.
type Stats struct {
	Total         int `json:"total"`
	Pending       int `json:"pending"`
	Running       int `json:"running"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	Cancelled     int `json:"cancelled"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Count returns the count for a single state.
func (s Stats) Count(state State) int {
	switch state {
	case StatePending:
		return s.Pending
	case StateRunning:
		return s.Running
	case StateCompleted:
		return s.Completed
	case StateFailed:
		return s.Failed
	case StateCancelled:
		return s.Cancelled
	default:
		return 0
	}
}
