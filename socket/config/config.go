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

// Package config holds the per-socket configuration shared by socket/server
// and socket/client: the address family/protocol, the address itself, and,
// for servers, the endpoint tuning knobs (max_message_size, queue_limit,
// send_timeout, con_idle_timeout).
package config

import (
	"fmt"
	"runtime"
	"strings"

	libdur "github.com/COVESA/vsomeip-sub001/duration"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TLS is intentionally a thin placeholder: TLS policy belongs to the
// security oracle, never implemented here. It exists so a
// Server/Client literal has a stable TLS.Enabled field to zero-check.
type TLS struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
}

// Client is the dial-side socket configuration (client endpoints).
type Client struct {
	Network libptc.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" validate:"required"`
	Address string                 `mapstructure:"address" json:"address" yaml:"address" validate:"required"`
	TLS     TLS                    `mapstructure:"tls" json:"tls" yaml:"tls"`
}

// Server is the listen-side socket configuration (server endpoints).
type Server struct {
	Network        libptc.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" validate:"required"`
	Address        string                 `mapstructure:"address" json:"address" yaml:"address" validate:"required"`
	TLS            TLS                    `mapstructure:"tls" json:"tls" yaml:"tls"`
	MaxMessageSize uint32                 `mapstructure:"max_message_size" json:"max_message_size" yaml:"max_message_size"`
	QueueLimit     uint32                 `mapstructure:"queue_limit" json:"queue_limit" yaml:"queue_limit"`
	SendTimeout    libdur.Duration        `mapstructure:"send_timeout" json:"send_timeout" yaml:"send_timeout"`
	ConIdleTimeout libdur.Duration        `mapstructure:"con_idle_timeout" json:"con_idle_timeout" yaml:"con_idle_timeout"`
}

// Validate checks protocol/address consistency: a unix-domain protocol must
// carry a filesystem path (not host:port), and unix sockets are rejected on
// Windows.
func (c Client) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return validateAddress(c.Network, c.Address)
}

func (s Server) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	return validateAddress(s.Network, s.Address)
}

func validateAddress(n libptc.NetworkProtocol, addr string) error {
	if addr == "" {
		return fmt.Errorf("socket/config: empty address")
	}
	if n.IsUnixDomain() {
		if runtime.GOOS == "windows" {
			return fmt.Errorf("socket/config: unix-domain sockets are not supported on windows")
		}
		if !strings.HasPrefix(addr, "/") && !strings.HasPrefix(addr, "./") && !strings.HasPrefix(addr, "@") {
			return fmt.Errorf("socket/config: unix-domain address %q must be a filesystem path", addr)
		}
		return nil
	}
	if !strings.Contains(addr, ":") {
		return fmt.Errorf("socket/config: address %q must be host:port", addr)
	}
	return nil
}
