package ports

import "time"

type Clock interface {
	Now() time.Time
	// AfterFunc runs f once d has elapsed. The returned Timer cancels a
	// call that has not started yet.
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
