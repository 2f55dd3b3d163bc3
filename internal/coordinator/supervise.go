package coordinator

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Status is the terminal outcome of a supervised run.
type Status struct {
	Err       error
	Panicked  bool
	Stack     []byte
	Time      float64
	Iteration int
}

// Supervise runs c in its own goroutine and delivers exactly one Status on
// the returned channel once the run has ended and the engines are
// finalized. A panic anywhere in the run is recovered and reported instead
// of crashing the process. The caller must not use c until the Status
// arrives.
func Supervise(ctx context.Context, c *Coordinator) <-chan Status {
	out := make(chan Status, 1)
	go func() {
		defer close(out)
		out <- run(ctx, c)
	}()
	return out
}

func run(ctx context.Context, c *Coordinator) (st Status) {
	defer func() {
		if r := recover(); r != nil {
			st = Status{
				Err:       fmt.Errorf("coordinator panicked: %v", r),
				Panicked:  true,
				Stack:     debug.Stack(),
				Time:      c.Time(),
				Iteration: c.Iteration(),
			}
			c.logger.Error("coordinator panicked", "panic", fmt.Sprint(r))
			_ = c.Close()
		}
	}()

	err := c.Run(ctx)
	if cerr := c.Close(); err == nil {
		err = cerr
	}
	return Status{Err: err, Time: c.Time(), Iteration: c.Iteration()}
}
