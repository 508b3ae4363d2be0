package scheduler

import "fmt"

type AlreadyRunningError struct {
	Job string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("%s is already running", e.Job)
}

func errAlreadyRunning(job string) error {
	return &AlreadyRunningError{Job: job}
}
