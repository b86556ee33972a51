// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package retry

import (
	"testing"
	"time"
)

func TestDelayClampsToFloorAndMax(t *testing.T) {
	p := Policy{
		Mode:              ModeExponential,
		BaseDelay:         time.Second,
		RetryBackoffFloor: 500 * time.Millisecond,
		RetryBackoffMax:   5 * time.Second,
	}
	for i := 0; i < 10; i++ {
		d := p.Delay(i)
		if d < 0 || d > p.RetryBackoffMax {
			t.Fatalf("Delay(%d) = %v, want within [0, %v]", i, d, p.RetryBackoffMax)
		}
	}
}

func TestDelayFixedMode(t *testing.T) {
	p := Policy{Mode: ModeFixed, BaseDelay: 3 * time.Second}
	for i := 0; i < 5; i++ {
		if got := p.Delay(i); got != 3*time.Second {
			t.Fatalf("Delay(%d) = %v, want fixed 3s", i, got)
		}
	}
}

func TestExhausted(t *testing.T) {
	p := Policy{MaxRetries: 3, TotalTimeout: time.Minute}
	cases := []struct {
		attempt int
		age     time.Duration
		want    bool
	}{
		{0, time.Second, false},
		{1, time.Second, false},
		{2, time.Second, true},
		{0, 2 * time.Minute, true},
	}
	for _, c := range cases {
		if got := p.Exhausted(c.attempt, c.age); got != c.want {
			t.Fatalf("Exhausted(%d, %v) = %v, want %v", c.attempt, c.age, got, c.want)
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.MaxRetries <= 0 || p.BaseDelay <= 0 {
		t.Fatalf("DefaultPolicy() produced zero-value fields: %+v", p)
	}
}
