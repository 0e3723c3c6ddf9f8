/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package discovery

import (
	"math/rand"
	"sync"
	"time"

	"github.com/COVESA/vsomeip-sub001/routing"
)

// EmitFunc sends one SD entry for an offer's current phase/repetition.
type EmitFunc func()

// OfferTimers drives one offer's SD phase machine: the random
// initial wait, doubling repetitions, and the steady cyclic main phase.
// routing.OfferLifecycle owns the phase/repetition state; this type only
// owns the timers that advance it.
type OfferTimers struct {
	cfg   Config
	life  *routing.OfferLifecycle
	emit  EmitFunc

	mu      sync.Mutex
	timer   *time.Timer
	ticker  *time.Ticker
	done    chan struct{}
	stopped bool
}

// NewOfferTimers builds the timer set for one offer. emit is called once
// per scheduled Offer emission; it is the caller's job to serialize the
// actual SD entry onto the wire.
func NewOfferTimers(cfg Config, life *routing.OfferLifecycle, emit EmitFunc) *OfferTimers {
	return &OfferTimers{cfg: cfg, life: life, emit: emit}
}

// Start begins the initial-wait countdown and, once it fires, the
// repetition/main sequence.
func (t *OfferTimers) Start() {
	t.life.Start()
	delay := randomDuration(t.cfg.InitialDelayMin.ToDuration(), t.cfg.InitialDelayMax.ToDuration())
	t.schedule(delay, t.fireInitial)
}

func (t *OfferTimers) fireInitial() {
	t.emit()
	if t.cfg.RepetitionsMax <= 0 {
		t.schedule(t.cfg.CyclicOfferDelay.ToDuration(), t.enterMain)
		return
	}
	t.life.EnterRepetition()
	t.scheduleRepetition(t.cfg.RepetitionsBaseDelay.ToDuration())
}

func (t *OfferTimers) scheduleRepetition(delay time.Duration) {
	t.schedule(delay, func() {
		n := t.life.Repeat()
		t.emit()
		if n >= t.cfg.RepetitionsMax {
			t.schedule(t.cfg.CyclicOfferDelay.ToDuration(), t.enterMain)
			return
		}
		t.scheduleRepetition(delay * 2)
	})
}

func (t *OfferTimers) enterMain() {
	t.life.EnterMain()
	t.emit()

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.ticker = time.NewTicker(t.cfg.CyclicOfferDelay.ToDuration())
	t.done = make(chan struct{})
	ticker := t.ticker
	done := t.done
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				t.emit()
			case <-done:
				return
			}
		}
	}()
}

// StopSilently cancels every pending timer and reports whether the offer
// never left its initial collection phase (the "cancels silently").
func (t *OfferTimers) StopSilently() bool {
	silent := t.life.StopSilently()
	t.Stop()
	return silent
}

// Stop cancels all outstanding timers without inspecting phase.
func (t *OfferTimers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
	}
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}

func (t *OfferTimers) schedule(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, fn)
}

// randomDuration returns a uniform random value in [min, max]; if max <=
// min it returns min (a single valid instant, not a range).
func randomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int64(max - min)
	return min + time.Duration(rand.Int63n(span+1))
}

// FindTimers coalesces repeated find_service calls for the same target
// into a single debounced emission (sd_find_debounce_time).
type FindTimers struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	emit  EmitFunc
}

func NewFindTimers(delay time.Duration, emit EmitFunc) *FindTimers {
	return &FindTimers{delay: delay, emit: emit}
}

// Trigger (re)arms the debounce window; emit fires once it elapses without
// another Trigger call.
func (f *FindTimers) Trigger() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.delay, f.emit)
}

func (f *FindTimers) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
	}
}
