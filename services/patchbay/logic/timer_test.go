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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// pump mimics the owner: every notify ping is turned into a FireTimer call.
func pump(rt *Runtime, pings <-chan string, stop <-chan struct{}) {
	for {
		select {
		case id := <-pings:
			rt.FireTimer(id)
		case <-stop:
			return
		}
	}
}

func newTimerHarness(t *testing.T) (*Runtime, chan string, func()) {
	t.Helper()
	pings := make(chan string, 64)
	rt := newTestRuntime(t, func(id string) {
		select {
		case pings <- id:
		default:
		}
	})
	stop := make(chan struct{})
	go pump(rt, pings, stop)
	return rt, pings, func() { close(stop); rt.Reset() }
}

func waitForTicks(t *testing.T, cap *capture, n int, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		if cap.count() >= n {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("wanted %d ticks within %v, got %d", n, within, cap.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTimer_TicksWhileRunning(t *testing.T) {
	rt, _, cleanup := newTimerHarness(t)
	defer cleanup()

	u, err := rt.Create("t", registry.KindTimer, map[string]any{
		"interval": 15.0, "running": true,
	})
	require.NoError(t, err)

	cap := &capture{}
	require.NoError(t, u.Connect("tick", ConnKey{Consumer: "b", Input: "press"}, cap))

	waitForTicks(t, cap, 3, 2*time.Second)
	last, _ := cap.last()
	assert.Equal(t, 1.0, last.value)
}

func TestTimer_StoppedStaysSilent(t *testing.T) {
	rt, _, cleanup := newTimerHarness(t)
	defer cleanup()

	u, err := rt.Create("t", registry.KindTimer, map[string]any{"interval": 10.0})
	require.NoError(t, err)

	cap := &capture{}
	require.NoError(t, u.Connect("tick", ConnKey{Consumer: "b", Input: "press"}, cap))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, cap.count(), "a timer defaults to stopped")
}

func TestTimer_RunningToggle(t *testing.T) {
	rt, _, cleanup := newTimerHarness(t)
	defer cleanup()

	u, err := rt.Create("t", registry.KindTimer, map[string]any{"interval": 15.0})
	require.NoError(t, err)

	cap := &capture{}
	require.NoError(t, u.Connect("tick", ConnKey{Consumer: "b", Input: "press"}, cap))

	require.NoError(t, u.SetProperty("running", true))
	waitForTicks(t, cap, 2, 2*time.Second)

	require.NoError(t, u.SetProperty("running", false))
	time.Sleep(30 * time.Millisecond)
	settled := cap.count()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, settled, cap.count(), "no ticks after stopping")
}

func TestTimer_IntervalChangeTakesEffect(t *testing.T) {
	rt, _, cleanup := newTimerHarness(t)
	defer cleanup()

	// Long interval first, so any early tick can only come from the
	// reconfigured one.
	u, err := rt.Create("t", registry.KindTimer, map[string]any{
		"interval": 30000.0, "running": true,
	})
	require.NoError(t, err)

	cap := &capture{}
	require.NoError(t, u.Connect("tick", ConnKey{Consumer: "b", Input: "press"}, cap))

	require.NoError(t, u.SetProperty("interval", 15.0))
	waitForTicks(t, cap, 2, 2*time.Second)
}

func TestTimer_IntervalClampedToFloor(t *testing.T) {
	rt, _, cleanup := newTimerHarness(t)
	defer cleanup()

	u, err := rt.Create("t", registry.KindTimer, nil)
	require.NoError(t, err)

	// Below the schema floor of 10ms; must not produce a zero-period
	// ticker.
	require.NoError(t, u.SetProperty("interval", 0.0))
	tu := u.(*TimerUnit)
	tu.mu.Lock()
	interval := tu.interval
	tu.mu.Unlock()
	assert.Equal(t, 10*time.Millisecond, interval)
}

func TestTimer_DestroyCancelsDelivery(t *testing.T) {
	rt, _, cleanup := newTimerHarness(t)
	defer cleanup()

	u, err := rt.Create("t", registry.KindTimer, map[string]any{
		"interval": 10.0, "running": true,
	})
	require.NoError(t, err)

	cap := &capture{}
	require.NoError(t, u.Connect("tick", ConnKey{Consumer: "b", Input: "press"}, cap))
	waitForTicks(t, cap, 1, 2*time.Second)

	rt.Destroy("t")
	// Let any delivery that was already past the gate land before
	// sampling.
	time.Sleep(20 * time.Millisecond)
	after := cap.count()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, cap.count(), "destroy must silence the timer")

	// A stale ping for the destroyed node evaporates.
	rt.FireTimer("t")
	assert.Equal(t, after, cap.count())
}
