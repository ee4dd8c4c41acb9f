package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/mklimuk/sensorhal"
	"github.com/mklimuk/sensorhal/freq"
)

// Phase is the worker state derived from (enabled, mode, stop).
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseIdle
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "stopped"
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// PhaseOf is the worker transition table.
func PhaseOf(enabled bool, mode sensorhal.Mode, stop bool) Phase {
	switch {
	case stop:
		return PhaseStopped
	case enabled && mode == sensorhal.ModeNormal:
		return PhaseActive
	default:
		return PhaseIdle
	}
}

// cycle is what the worker captures under lock before a poll step.
type cycle struct {
	handle sensorhal.DataHandle
	period time.Duration
}

// state is the mutable part of a sensor. All fields are guarded by mx and
// every committed change is broadcast on wake.
type state struct {
	mx   sync.Mutex
	wake *sync.Cond

	enabled bool
	mode    sensorhal.Mode
	period  time.Duration
	stop    bool
	handle  sensorhal.DataHandle
	table   freq.Table

	// polling is set while the worker uses handle outside the lock; a handle
	// released meanwhile is parked in retired and closed by the worker.
	polling bool
	retired []sensorhal.DataHandle
}

func newState(table freq.Table) *state {
	s := &state{mode: sensorhal.ModeNormal, table: table}
	s.wake = sync.NewCond(&s.mx)
	return s
}

func (s *state) phase() Phase {
	return PhaseOf(s.enabled, s.mode, s.stop)
}

// awaitActive blocks until the sensor is active and returns the cycle to
// run, or false once stop was requested.
func (s *state) awaitActive() (cycle, bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	for {
		switch s.phase() {
		case PhaseStopped:
			return cycle{}, false
		case PhaseActive:
			s.polling = true
			return cycle{handle: s.handle, period: s.period}, true
		}
		s.wake.Wait()
	}
}

// endCycle returns the handles released while the cycle was in flight; the
// caller closes them.
func (s *state) endCycle() []sensorhal.DataHandle {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.polling = false
	retired := s.retired
	s.retired = nil
	return retired
}

// setEnabled commits a change of the enabled flag. open is called under lock
// on enable; the released handle (if any) is returned to the caller for
// closing unless the worker still uses it. power is called under lock after
// the flag is committed. Returns whether anything changed.
func (s *state) setEnabled(enable bool, open func() (sensorhal.DataHandle, error), power func(bool) error) (bool, sensorhal.DataHandle, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.stop {
		return false, nil, ErrClosed
	}
	if s.enabled == enable {
		return false, nil, nil
	}
	var released sensorhal.DataHandle
	var openErr error
	if enable {
		s.handle, openErr = open()
		if openErr != nil {
			s.handle = nil
		}
	} else if s.handle != nil {
		if s.polling {
			s.retired = append(s.retired, s.handle)
		} else {
			released = s.handle
		}
		s.handle = nil
	}
	s.enabled = enable
	err := power(enable)
	s.wake.Broadcast()
	if openErr != nil {
		return true, released, openErr
	}
	return true, released, err
}

// setPeriod stores a clamped period. negotiate runs under lock only when the
// period changes; it gets the current table and returns the table to keep.
func (s *state) setPeriod(clamped time.Duration, negotiate func(freq.Table) (freq.Table, error)) (bool, error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.stop {
		return false, ErrClosed
	}
	if s.period == clamped {
		return false, nil
	}
	table, err := negotiate(s.table)
	s.table = table
	s.period = clamped
	s.wake.Broadcast()
	return true, err
}

func (s *state) setMode(mode sensorhal.Mode) bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.mode == mode {
		return false
	}
	s.mode = mode
	s.wake.Broadcast()
	return true
}

// requestStop flags the worker to exit and returns whether the sensor was
// enabled.
func (s *state) requestStop() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	wasEnabled := s.enabled
	s.stop = true
	s.enabled = false
	s.wake.Broadcast()
	return wasEnabled
}

// release hands over every handle still owned by the state. Only valid once
// the worker has exited.
func (s *state) release() []sensorhal.DataHandle {
	s.mx.Lock()
	defer s.mx.Unlock()
	handles := s.retired
	if s.handle != nil {
		handles = append(handles, s.handle)
	}
	s.handle = nil
	s.retired = nil
	return handles
}

func (s *state) isEnabled() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.enabled
}

func (s *state) currentMode() sensorhal.Mode {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.mode
}

func (s *state) currentPeriod() time.Duration {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.period
}

func (s *state) currentPhase() Phase {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.phase()
}

func (s *state) currentTable() freq.Table {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.table
}

func (s *state) hasHandle() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.handle != nil
}
