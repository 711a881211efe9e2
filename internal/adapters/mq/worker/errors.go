package worker

import "errors"

// ErrJobPanicked is reported to the submitter when a job body panics.
var ErrJobPanicked = errors.New("mutation panicked")
