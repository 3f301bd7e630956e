package scheduler

// StartSpeculation pushes a resume point and enters speculation (§4.12). If
// a record is currently pending delivery on the output (queueCurrent),
// it is re-enqueued onto the current input so it is not lost.
func (o *Output) StartSpeculation(pc uint64, queueCurrent bool) {
	if queueCurrent && o.lastRecord != nil && o.curInput != nil {
		withInput(o.curInput, func() {
			o.curInput.pushFront(o.lastRecord)
		})
	}
	o.specStack = append(o.specStack, o.speculatePC)
	o.speculatePC = pc
}

// withInput is declared in locks.go; used here to bracket the re-enqueue.

// StopSpeculation pops the most recent resume point, restoring
// speculate_pc, and leaves speculation if the stack is now empty (§4.12).
func (o *Output) StopSpeculation() error {
	if len(o.specStack) == 0 {
		return errInvalid("stop_speculation called with no active speculation")
	}
	n := len(o.specStack)
	o.speculatePC = o.specStack[n-1]
	o.specStack = o.specStack[:n-1]
	return nil
}

// speculateNext delegates to spec for the next synthetic record while the
// output is speculating, advancing speculate_pc. Quantum accounting is
// suspended during speculation (§4.4 step 3, §4.12).
func (o *Output) speculateNext(spec Speculator) (Record, error) {
	rec, nextPC, err := spec.Next(o.speculatePC, o.lastRecord)
	if err != nil {
		return nil, err
	}
	o.speculatePC = nextPC
	return rec, nil
}
