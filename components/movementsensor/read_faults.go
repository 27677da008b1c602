package movementsensor

import (
	"fmt"
	"sync"
)

// ReadFault is what a driver reports once too many of its recent reads failed.
type ReadFault struct {
	Op     string
	Failed int // failed reads inside the window
	Window int
	Err    error // the most recent failure
}

func (f *ReadFault) Error() string {
	return fmt.Sprintf("%s failed %d of the last %d reads: %v", f.Op, f.Failed, f.Window, f.Err)
}

func (f *ReadFault) Unwrap() error {
	return f.Err
}

// ReadFaults keeps the outcome of the last window reads of one driver operation. A background poll
// records every outcome and the foreground getters ask Err whether the sensor is healthy.
type ReadFaults struct {
	op        string
	window    int
	threshold int

	mu       sync.Mutex
	outcomes []error // ring buffer, next is the oldest slot
	next     int
	failed   int
}

// NewReadFaults reports a fault once at least threshold of the last window reads of op failed.
func NewReadFaults(op string, window, threshold int) *ReadFaults {
	if window < 0 {
		window = 0
	}
	return &ReadFaults{op: op, window: window, threshold: threshold, outcomes: make([]error, window)}
}

// Record stores the outcome of one read. Successful reads should be recorded too so old failures
// age out.
func (rf *ReadFaults) Record(err error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.window == 0 {
		return
	}
	if rf.outcomes[rf.next] != nil {
		rf.failed--
	}
	if err != nil {
		rf.failed++
	}
	rf.outcomes[rf.next] = err
	rf.next = (rf.next + 1) % rf.window
}

// Err returns a *ReadFault when enough recent reads failed, and then forgets the window so the same
// failure is reported once.
func (rf *ReadFaults) Err() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.failed == 0 || rf.failed < rf.threshold {
		return nil
	}

	fault := &ReadFault{Op: rf.op, Failed: rf.failed, Window: rf.window}
	for i := 1; i <= rf.window; i++ {
		if err := rf.outcomes[(rf.next-i+rf.window)%rf.window]; err != nil {
			fault.Err = err
			break
		}
	}
	clear(rf.outcomes)
	rf.failed = 0
	return fault
}
