package scheduler

// injectSwitchSequence implements §4.11: for each switch in
// ToAnyOutput/AsPreviously, if the scheduler carries kernel context-switch
// sequences and the output has already delivered at least one instruction,
// push the appropriate sequence's records to the front of the incoming
// input's queue in one bulk push that keeps their original order, retagged
// to the incoming tid. These report
// as synthetic and never advance stream ordinals.
func (s *Scheduler) injectSwitchSequence(o *Output, outgoing, incoming *Input) {
	if len(s.switchSequence) == 0 {
		return
	}
	if o.instrsDelivered == 0 {
		return // output hasn't delivered an instruction yet
	}
	kind := SwitchThread
	if outgoing == nil || outgoing.workload != incoming.workload {
		kind = SwitchProcess
	}
	seq := s.switchSequence[kind]
	if len(seq) == 0 {
		return
	}
	retagged := make([]Record, len(seq))
	for i, rec := range seq {
		retagged[i] = rec.WithTid(incoming.tid)
	}
	incoming.pushFrontMany(retagged)
}
