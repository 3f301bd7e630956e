package scheduler

// Lock ordering (§5, §9): sched_lock is acquired before any per-input lock
// except transiently, when a path already holding an input lock must take
// sched_lock -- that path must release the input lock first. This file
// holds helpers for the common shapes. The marker handlers in marker.go
// (handleDirectThreadSwitch, handleSyscallSchedule) release and retake the
// input lock by hand, and withInputThenSched, withSched and
// withSchedThenInput have no callers.

// withInputThenSched acquires in's lock, runs f, releases in's lock, then
// acquires schedLock and runs g, releasing schedLock after. It is the
// "unlock-then-acquire-both" shape §5 calls out for SyscallSchedule
// handling: f typically reads/mutates input-only state, g moves the input
// between queues under schedLock.
func (s *Scheduler) withInputThenSched(in *Input, f func(), g func()) {
	in.lock.Lock()
	f()
	in.lock.Unlock()

	s.schedLock.Lock()
	defer s.schedLock.Unlock()
	g()
}

// withSched runs f while holding schedLock only.
func (s *Scheduler) withSched(f func()) {
	s.schedLock.Lock()
	defer s.schedLock.Unlock()
	f()
}

// withInput runs f while holding in's lock only.
func withInput(in *Input, f func()) {
	in.lock.Lock()
	defer in.lock.Unlock()
	f()
}

// withSchedThenInput acquires schedLock first, then in's lock, matching the
// normal (non-transient) order of §5. Used by dispatch paths that already
// need schedLock for queue mutation and must also touch input state.
func (s *Scheduler) withSchedThenInput(in *Input, f func()) {
	s.schedLock.Lock()
	defer s.schedLock.Unlock()
	in.lock.Lock()
	defer in.lock.Unlock()
	f()
}
