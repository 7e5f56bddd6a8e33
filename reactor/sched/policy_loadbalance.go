package sched

import "github.com/makesoftwaresafe/spdk-sub001/reactor/governor"

// LoadBalance moves one thread at a time from the busiest non-isolated
// core to the least-busy non-isolated core, whenever the gap between them
// exceeds Threshold (as a fraction of the busiest core's current busy
// ticks). It never touches InterruptMode; that knob is left to a governor
// or an operator-driven policy layered on top.
type LoadBalance struct {
	// Threshold is the minimum relative busy-tick gap (0..1) that triggers
	// a single migration per pass. Zero means "always balance the single
	// most lopsided pair".
	Threshold float64
}

func (LoadBalance) Name() string { return "load-balance" }
func (LoadBalance) Init() error  { return nil }
func (LoadBalance) Deinit()      {}

func (p LoadBalance) Balance(cores []CoreInfo) {
	var busiest, idlest *CoreInfo
	for i := range cores {
		c := &cores[i]
		if c.Isolated || len(c.ThreadInfos) == 0 {
			continue
		}
		if busiest == nil || c.CurrentBusyTSC > busiest.CurrentBusyTSC {
			busiest = c
		}
	}
	for i := range cores {
		c := &cores[i]
		if c.Isolated {
			continue
		}
		if idlest == nil || c.CurrentBusyTSC < idlest.CurrentBusyTSC {
			idlest = c
		}
	}
	if busiest == nil || idlest == nil || busiest.Lcore == idlest.Lcore {
		return
	}

	gap := busiest.CurrentBusyTSC - idlest.CurrentBusyTSC
	if busiest.CurrentBusyTSC == 0 {
		return
	}
	if float64(gap)/float64(busiest.CurrentBusyTSC) < p.Threshold {
		return
	}

	// Move the single least-busy thread on the busiest core: the smallest
	// disruption that still relieves the imbalance.
	best := -1
	for i, ti := range busiest.ThreadInfos {
		if best == -1 || ti.Current.Busy < busiest.ThreadInfos[best].Current.Busy {
			best = i
		}
	}
	if best >= 0 {
		busiest.ThreadInfos[best].Lcore = idlest.Lcore
	}

	// If a governor is active, let it raise the core taking on load and
	// ease off the one shedding it; a missing/failing governor is not
	// fatal to balancing.
	if g := governor.Active(); g != nil {
		_ = g.SetCoreFreq(idlest.Lcore, governorFreqHigh)
		_ = g.SetCoreFreq(busiest.Lcore, governorFreqLow)
	}
}

const (
	governorFreqHigh = ^uint32(0) // sentinel: "maximum"
	governorFreqLow  = uint32(0)  // sentinel: "minimum"
)
