package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of embedding one game in a batch run.
type Result struct {
	id     int64
	status ItemStatus
	err    error
}

// NewOK creates a successful batch result.
func NewOK(id int64) Result { return Result{id: id, status: StatusOK} }

// NewError creates a failed batch result.
func NewError(id int64, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the game identifier.
func (r Result) ID() int64 { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary reports a whole batch run. Results follow input order.
type Summary struct {
	Total     int
	Committed int
	Failed    int
	Chunks    int
	// Interrupted is set when the run stopped at a chunk boundary on cancellation.
	Interrupted bool
	Results     []Result
}

// Add records r and updates the counters.
func (s *Summary) Add(r Result) {
	s.Results = append(s.Results, r)
	if r.status == StatusOK {
		s.Committed++
		return
	}
	s.Failed++
}

// SuccessRate returns committed/total in percent, 0 for an empty run.
func (s *Summary) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Committed) / float64(s.Total) * 100
}

// Errors returns the failed results.
func (s *Summary) Errors() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.status == StatusError {
			out = append(out, r)
		}
	}
	return out
}
