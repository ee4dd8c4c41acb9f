package engine

import (
	"time"

	"github.com/mklimuk/sensorhal"
)

// run is the worker loop. It sleeps on the state condition while idle and
// runs one poll-read-deliver cycle per iteration while active. Device errors
// never leave the loop.
func (e *Engine) run() {
	defer close(e.done)
	e.logger.Debug("worker started")
	for {
		c, ok := e.st.awaitActive()
		if !ok {
			e.logger.Debug("worker stopped")
			return
		}
		e.poll(c)
		for _, h := range e.st.endCycle() {
			if err := h.Close(); err != nil {
				e.logger.Warn("could not close data handle", "error", err)
			}
		}
	}
}

func (e *Engine) pollTimeout(period time.Duration) time.Duration {
	if period <= 0 {
		period = e.desc.MaxDelay
	}
	return period / time.Duration(e.config.TimeoutDivisor)
}

// poll runs one active cycle with the state captured at its start. It can't
// be interrupted and is bounded by the poll timeout.
func (e *Engine) poll(c cycle) {
	timeout := e.pollTimeout(c.period)
	if c.handle == nil {
		e.logger.Error("sensor enabled without an open data handle")
		e.backoff(timeout)
		return
	}
	ready, err := c.handle.WaitReady(timeout)
	if err != nil {
		e.logger.Error("poll failed", "timeout", timeout, "error", err)
		e.backoff(timeout)
		return
	}
	if ready != sensorhal.ReadyData {
		// drivers serve the latest sample without signalling, read anyway
		e.logger.Debug("poll timed out", "timeout", timeout)
	}
	raw, err := c.handle.ReadRaw(e.background)
	if err != nil {
		e.logger.Error("could not read sample", "error", err)
		e.backoff(timeout)
		return
	}
	payload, err := e.desc.Kind.Convert(raw)
	if err != nil {
		e.logger.Error("could not convert sample", "raw", raw, "error", err)
		return
	}
	e.sink.PostEvents([]sensorhal.Event{{
		SensorHandle: e.desc.Handle,
		Kind:         e.desc.Kind,
		Timestamp:    e.now(),
		Payload:      payload,
	}}, e.IsWakeUp())
}

// backoff waits for the poll timeout after a failed cycle so a broken device
// can't turn the loop into a busy spin. It returns early on Close.
func (e *Engine) backoff(timeout time.Duration) {
	timer := e.clock.Timer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-e.background.Done():
	}
}
