// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logic

import (
	"sync"
	"time"

	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// TimerUnit emits a pulse on a fixed interval while running. It is the only
// kind with its own goroutine, and that goroutine never delivers values
// itself: each tick pings the notify hook, and the owner decides whether to
// call Fire. That keeps every consumer invocation on the owner's goroutine
// and makes Close an effective cancellation point even with a tick in
// flight.
type TimerUnit struct {
	baseUnit
	interval time.Duration
	running  bool

	notify   NotifyFunc
	reconfig chan time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func newTimer(id string, def registry.Definition, log *logging.Logger, notify NotifyFunc) *TimerUnit {
	u := &TimerUnit{
		baseUnit: newBaseUnit(id, def, log),
		interval: msToDuration(def.Param("interval").Default.(float64)),
		running:  def.Param("running").Default.(bool),
		notify:   notify,
		reconfig: make(chan time.Duration, 1),
		done:     make(chan struct{}),
	}
	go u.run()
	return u
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

func (u *TimerUnit) SetProperty(name string, value any) error {
	switch name {
	case "interval":
		f, ok, err := u.normalizeFloat(name, value)
		if err != nil || !ok {
			return err
		}
		d := msToDuration(f)
		u.mu.Lock()
		u.interval = d
		u.mu.Unlock()
		u.poke(d)
		return nil

	case "running":
		norm, err := u.normalize(name, value)
		if err != nil || norm == nil {
			return err
		}
		u.mu.Lock()
		wasRunning := u.running
		u.running = norm.(bool)
		d := u.interval
		u.mu.Unlock()
		if !wasRunning && norm.(bool) {
			// Realign the phase so the first tick lands one full
			// interval after the resume, not mid-cycle.
			u.poke(d)
		}
		return nil

	default:
		_, err := u.normalize(name, value)
		return err
	}
}

// poke hands the run loop a new interval, replacing any undelivered one.
func (u *TimerUnit) poke(d time.Duration) {
	select {
	case <-u.reconfig:
	default:
	}
	u.reconfig <- d
}

// Fire emits one tick pulse. Called by the owner in response to a notify
// ping; a ping that arrives after the timer stopped or closed is dropped
// here.
func (u *TimerUnit) Fire() {
	u.mu.Lock()
	if u.closed || !u.running {
		u.mu.Unlock()
		return
	}
	u.mu.Unlock()

	u.emit("tick", 1, true)
}

func (u *TimerUnit) Close() {
	u.stopOnce.Do(func() { close(u.done) })
	u.baseUnit.Close()
}

func (u *TimerUnit) run() {
	u.mu.Lock()
	d := u.interval
	u.mu.Unlock()

	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		var tickCh <-chan time.Time
		u.mu.Lock()
		if u.running {
			tickCh = ticker.C
		}
		u.mu.Unlock()

		select {
		case <-u.done:
			return
		case next := <-u.reconfig:
			ticker.Stop()
			select {
			case <-ticker.C:
			default:
			}
			ticker.Reset(next)
		case <-tickCh:
			u.notify(u.id)
		}
	}
}
