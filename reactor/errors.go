package reactor

import (
	"errors"
	"fmt"
)

// Sentinel errors for reactor-level failures (spec.md §7).
var (
	// ErrEventPoolExhausted is returned by EventMempool.Allocate when no
	// slot is free. Callers surface this upward; internal chains
	// (for_each_reactor, the scheduling pass) log and fall back to
	// invoking the completion path directly.
	ErrEventPoolExhausted = errors.New("reactor: event mempool exhausted")

	// ErrRingFull indicates event_call tried to enqueue onto a ring that
	// was already exactly full. Per spec.md §7 this is a programmer error
	// (the mempool must exhaust first) and is treated as fatal, not retried.
	ErrRingFull = errors.New("reactor: event ring full")

	// ErrCoreClaimConflict is returned at startup when a core's advisory
	// lock file is already held by another process. Fatal: abort startup.
	ErrCoreClaimConflict = errors.New("reactor: core already claimed by another process")

	// ErrStoppingReactors is returned by for_each_reactor once Shutdown
	// has begun; further traversals short-circuit.
	ErrStoppingReactors = errors.New("reactor: pool is stopping, no new traversals accepted")

	// ErrIsolatedCore indicates a migration was refused because it would
	// move a thread onto or off an isolated core.
	ErrIsolatedCore = errors.New("reactor: isolated core refuses migration")
)

// InterruptModeErrorCode enumerates the failure modes of
// reactor_set_interrupt_mode (spec.md §4.3).
type InterruptModeErrorCode int

const (
	// ErrCodeInval indicates the target lcore does not name a valid reactor.
	ErrCodeInval InterruptModeErrorCode = iota
	// ErrCodeNotSup indicates the target reactor has no fd-group.
	ErrCodeNotSup
	// ErrCodePerm indicates the caller is not the scheduling reactor.
	ErrCodePerm
	// ErrCodeBusy indicates a transition is already in flight for this target.
	ErrCodeBusy
)

func (c InterruptModeErrorCode) String() string {
	switch c {
	case ErrCodeInval:
		return "INVAL"
	case ErrCodeNotSup:
		return "NOTSUP"
	case ErrCodePerm:
		return "PERM"
	case ErrCodeBusy:
		return "BUSY"
	default:
		return "UNKNOWN"
	}
}

// InterruptModeError is returned by reactor_set_interrupt_mode. It carries
// a stable error code alongside a human-readable message, in the style of
// the teacher's TypeError/RangeError cause-chain types.
type InterruptModeError struct {
	Code    InterruptModeErrorCode
	Lcore   uint32
	Cause   error
	Message string
}

func (e *InterruptModeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("reactor: interrupt mode %s on lcore %d: %s", e.Code, e.Lcore, e.Message)
	}
	return fmt.Sprintf("reactor: interrupt mode %s on lcore %d", e.Code, e.Lcore)
}

func (e *InterruptModeError) Unwrap() error {
	return e.Cause
}
