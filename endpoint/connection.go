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
	"sync"
	"time"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	liblog "github.com/COVESA/vsomeip-sub001/logger"
	libsck "github.com/COVESA/vsomeip-sub001/socket"
	libsomeip "github.com/COVESA/vsomeip-sub001/someip"
)

// MessageHandler receives one fully-framed, decoded SOME/IP PDU.
type MessageHandler func(msg libsomeip.Message)

// ConnectionConfig bundles the per-connection tuning knobs: framing/
// magic-cookie behavior and send-queue limits/timeout.
type ConnectionConfig struct {
	Framer        FramerConfig
	SendQueue     SendQueueConfig
	CookieEnabled bool
}

// LogFields lets a caller attach service/instance/client/session context to
// send-timeout warnings, matching the "warning log carrying uid/gid/
// service/instance/method"-style field vocabulary.
type LogFields func() liblog.Fields

// Connection is the per-socket object: each accepted connection spawns a
// connection object with its own socket, receive buffer, and send queue.
// The same type backs both TCP server-side
// accepted connections and TCP/UDP client-side connections — only how it
// is constructed (server accept vs. client dial) differs.
type Connection struct {
	ctx     libsck.Context
	cfg     ConnectionConfig
	framer  *Framer
	queue   *SendQueue
	cookie  *CookieSender
	handler MessageHandler
	log     liblog.Logger
	fields  LogFields

	mu     sync.Mutex
	closed bool
}

func NewConnection(ctx libsck.Context, cfg ConnectionConfig, handler MessageHandler, log liblog.Logger, fields LogFields) *Connection {
	if log == nil {
		log = liblog.Discard()
	}
	if fields == nil {
		fields = func() liblog.Fields { return nil }
	}
	return &Connection{
		ctx:     ctx,
		cfg:     cfg,
		framer:  NewFramer(cfg.Framer),
		queue:   NewSendQueue(cfg.SendQueue),
		cookie:  NewCookieSender(cfg.CookieEnabled),
		handler: handler,
		log:     log,
		fields:  fields,
	}
}

// Run is the connection's read loop; it is the libsck.HandlerFunc passed
// to socket/server or socket/client's New. It returns once the underlying
// transport is closed or a framing error tears the connection down.
func (c *Connection) Run() {
	readBuf := make([]byte, 64*1024)
	for {
		n, err := c.ctx.Read(readBuf)
		if n > 0 {
			c.framer.Feed(readBuf[:n])
			c.drainFrames()
		}
		if err != nil {
			_ = c.Close()
			return
		}
	}
}

func (c *Connection) drainFrames() {
	messages, cookieErrs, teardown := c.framer.TakeMessages()
	for _, ce := range cookieErrs {
		c.log.WithFields(c.fields()).Warnf("endpoint: magic-cookie resync: %v", ce)
	}
	for _, raw := range messages {
		msg, err := libsomeip.Decode(raw)
		if err != nil {
			c.log.WithFields(c.fields()).Warnf("endpoint: dropping malformed PDU: %v", err)
			continue
		}
		c.handler(msg)
	}
	if teardown != nil {
		c.log.WithFields(c.fields()).Warnf("endpoint: tearing down connection: %v", teardown)
		_ = c.Close()
	}
}

// Send frames msg and enqueues it for delivery, per the "send_queued
// dispatches the head buffer."
func (c *Connection) Send(msg libsomeip.Message) error {
	payload := libsomeip.Encode(msg)
	if err := c.queue.Enqueue(payload); err != nil {
		return err
	}
	return c.pump()
}

func (c *Connection) pump() error {
	for {
		buf, ok := c.queue.Dispatch()
		if !ok {
			return nil
		}
		out := c.cookie.Prepare(buf)

		timeout := c.cfg.SendQueue.SendTimeout
		stop := make(chan struct{})
		if timeout > 0 {
			_ = c.ctx.SetWriteDeadline(time.Now().Add(timeout))
			go c.watch(stop, timeout)
		}

		_, err := c.ctx.Write(out)
		close(stop)
		if timeout > 0 {
			_ = c.ctx.SetWriteDeadline(time.Time{})
		}
		c.queue.Complete()

		if err != nil {
			_ = c.Close()
			return liberr.New(liberr.CodeConnectionLost, "endpoint: write failed", err)
		}
	}
}

// watch runs the half/full send_timeout log watch concurrently with the
// blocking Write call; actual enforcement of the timeout is delegated to
// the transport via SetWriteDeadline.
func (c *Connection) watch(stop chan struct{}, timeout time.Duration) {
	interval := timeout / 4
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.queue.Tick(func() liblog.Fields { return c.fields() })
		}
	}
}

func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.ctx.Close()
}

func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
