package gc

import "time"

// SafepointDriver rendezvous every mutator at a stop-the-world point
// before a collector-owned goroutine runs a mark/sweep phase
// (spec.md §5 "the safepoint protocol"). Begin asks every mutator to
// park at its next opportunity; Wait blocks until they all have; End
// lets them resume. This package only ever drives it from Collector,
// never implements a thread-suspension primitive of its own - spec.md
// §1 keeps "the actual mechanism a thread uses to notice it should
// park" out of scope, same as the type oracle.
type SafepointDriver interface {
	Begin(mutators []*Mutator)
	Wait(mutators []*Mutator)
	End(mutators []*Mutator)
}

// pollingSafepoint is the reference SafepointDriver: it relies on every
// mutator's accountAlloc (or an explicit PollSafepoint call) observing
// gcState and calling parkAtSafepoint on its own, then busy-polls with
// a short backoff until every mutator reports parked. This mirrors how
// the teacher's own stop-the-world preemption loop polls
// runtime.Gosched between checks rather than blocking on a condition
// variable, since a mutator's "next opportunity to park" is a program
// counter, not an event this driver can wait on directly.
type pollingSafepoint struct {
	pollInterval time.Duration
}

func newPollingSafepoint() *pollingSafepoint {
	return &pollingSafepoint{pollInterval: 50 * time.Microsecond}
}

func (p *pollingSafepoint) Begin(mutators []*Mutator) {
	// Nothing to do: mutators discover the pending stop the next time
	// they call PollSafepoint or cross an allocation threshold. A
	// request flag lives on the Collector, not here, so Begin is a
	// no-op landing place for drivers that do need a trigger.
}

func (p *pollingSafepoint) Wait(mutators []*Mutator) {
	for {
		allParked := true
		for _, m := range mutators {
			if !m.parked() {
				allParked = false
				break
			}
		}
		if allParked {
			return
		}
		time.Sleep(p.pollInterval)
	}
}

func (p *pollingSafepoint) End(mutators []*Mutator) {
	for _, m := range mutators {
		m.resumeFromSafepoint()
	}
}

// PollSafepoint must be called periodically by a mutator's own
// scheduling loop (a backward branch, a function prologue, whatever the
// host runtime uses) so the collector can stop it promptly. It is the
// voluntary cooperation half of the protocol; accountAlloc's threshold
// check is the involuntary half.
func (m *Mutator) PollSafepoint() {
	if m.c.stopRequested.Load() {
		m.parkAtSafepoint()
		for m.c.stopRequested.Load() {
			time.Sleep(time.Microsecond)
		}
		m.resumeFromSafepoint()
	}
}
