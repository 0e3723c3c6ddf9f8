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

package endpointmanager

import (
	"net"

	liberr "github.com/COVESA/vsomeip-sub001/errors"
	liblog "github.com/COVESA/vsomeip-sub001/logger"
	udpsrv "github.com/COVESA/vsomeip-sub001/socket/server/udp"
)

// multicastJob is one join or leave request against a bound UDP server's
// multicast group.
type multicastJob struct {
	server udpsrv.ServerUdp
	group  net.IP
	join   bool
	result chan error
}

// multicastWorker is the dedicated goroutine requires: "join/leave
// operations run on a dedicated worker thread fed by a... queue; this is
// required because socket join on some stacks may block." A buffered
// channel replaces the original condition-variable-signalled queue.
type multicastWorker struct {
	jobs chan multicastJob
	done chan struct{}
	log  liblog.Logger
}

func newMulticastWorker(log liblog.Logger) *multicastWorker {
	w := &multicastWorker{
		jobs: make(chan multicastJob, 64),
		done: make(chan struct{}),
		log:  log,
	}
	go w.run()
	return w
}

func (w *multicastWorker) run() {
	for {
		select {
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			var err error
			if job.join {
				err = job.server.Multicast(job.group)
			} else {
				err = job.server.MulticastLeave(job.group)
			}
			if err != nil {
				w.log.WithField("group", job.group.String()).Warnf("endpointmanager: multicast operation failed: %v", err)
			}
			if job.result != nil {
				job.result <- err
			}
		case <-w.done:
			return
		}
	}
}

func (w *multicastWorker) stop() {
	select {
	case <-w.done:
		return
	default:
		close(w.done)
	}
}

// JoinMulticast queues a join; it blocks until the worker services the
// request and returns its result, matching the synchronous call contract
// routing/discovery expects from find_or_create_multicast_endpoint.
func (m *Manager) JoinMulticast(server udpsrv.ServerUdp, group net.IP) error {
	return m.mcast.submit(multicastJob{server: server, group: group, join: true})
}

func (m *Manager) LeaveMulticast(server udpsrv.ServerUdp, group net.IP) error {
	return m.mcast.submit(multicastJob{server: server, group: group, join: false})
}

func (w *multicastWorker) submit(job multicastJob) error {
	job.result = make(chan error, 1)
	select {
	case <-w.done:
		return liberr.New(liberr.CodeMulticastJoinError, "endpointmanager: multicast worker stopped")
	case w.jobs <- job:
	}
	return <-job.result
}
