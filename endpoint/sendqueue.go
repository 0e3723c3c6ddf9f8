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

package endpoint

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	liblog "github.com/COVESA/vsomeip-sub001/logger"
)

// SendQueue is the per-target ordered sequence of pending payload buffers,
// plus the accumulated byte count and the half-timeout / full-timeout
// write-completion watch.
type SendQueue struct {
	mu          sync.Mutex
	queue       *list.List // of []byte
	bytes       int
	queueLimit  int
	sendTimeout time.Duration
	log         liblog.Logger

	sending    bool
	sendStart  time.Time
	warnedHalf bool
}

// SendQueueConfig tunes limit and timeout behavior.
type SendQueueConfig struct {
	QueueLimit  int // 0 means unbounded
	SendTimeout time.Duration
	Logger      liblog.Logger
}

func NewSendQueue(cfg SendQueueConfig) *SendQueue {
	log := cfg.Logger
	if log == nil {
		log = liblog.Discard()
	}
	return &SendQueue{
		queue:       list.New(),
		queueLimit:  cfg.QueueLimit,
		sendTimeout: cfg.SendTimeout,
		log:         log,
	}
}

// Enqueue appends a payload buffer; it reports CodeSendQueueLimit if the
// configured queue_limit would be exceeded.
func (q *SendQueue) Enqueue(payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queueLimit > 0 && q.bytes+len(payload) > q.queueLimit {
		return liberr.New(liberr.CodeSendQueueLimit, fmt.Sprintf("endpoint: send queue limit %d exceeded", q.queueLimit))
	}
	q.queue.PushBack(payload)
	q.bytes += len(payload)
	return nil
}

// Len reports the number of buffers currently queued.
func (q *SendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queue.Len()
}

// Bytes reports the accumulated byte count of all queued buffers.
func (q *SendQueue) Bytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// Dispatch pops the head buffer (nil, false if empty) and marks the send
// as in-flight so Tick can measure elapsed time against send_timeout.
func (q *SendQueue) Dispatch() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	front := q.queue.Front()
	if front == nil {
		return nil, false
	}
	payload := front.Value.([]byte)
	q.queue.Remove(front)
	q.bytes -= len(payload)
	q.sending = true
	q.sendStart = time.Now()
	q.warnedHalf = false
	return payload, true
}

// Complete marks the in-flight send finished successfully.
func (q *SendQueue) Complete() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sending = false
}

// WatchResult is what Tick reports about the in-flight send's age.
type WatchResult int

const (
	WatchOK WatchResult = iota
	WatchWarnHalf
	WatchTimedOut
)

// Tick inspects the in-flight send's elapsed time against send_timeout/2
// and send_timeout, per the "the write-completion condition watches
// elapsed time." It is idempotent for the half-timeout warning (only
// returns WatchWarnHalf once per in-flight send) but returns WatchTimedOut
// on every call once the full timeout has elapsed, until Complete or a
// fresh Dispatch resets state.
func (q *SendQueue) Tick(fields func() liblog.Fields) WatchResult {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.sending || q.sendTimeout <= 0 {
		return WatchOK
	}
	elapsed := time.Since(q.sendStart)
	if elapsed >= q.sendTimeout {
		var f liblog.Fields
		if fields != nil {
			f = fields()
		}
		q.log.WithFields(f).Warn("endpoint: send_timeout exceeded, tearing down connection")
		return WatchTimedOut
	}
	if elapsed >= q.sendTimeout/2 && !q.warnedHalf {
		q.warnedHalf = true
		var f liblog.Fields
		if fields != nil {
			f = fields()
		}
		q.log.WithFields(f).Warn("endpoint: send exceeded half of send_timeout")
		return WatchWarnHalf
	}
	return WatchOK
}
