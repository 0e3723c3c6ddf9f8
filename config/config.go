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

// Package config declares the settings consumed by this repo's components
// as the contract between them and whatever file/flag/env source a caller
// wires up; loading and watching a config file is the caller's job, not
// this package's. Decode unmarshals a Settings value out of a
// caller-supplied viper instance.
package config

import (
	"fmt"
	"net"

	libdur "github.com/COVESA/vsomeip-sub001/duration"
	"github.com/COVESA/vsomeip-sub001/endpointmanager"
	libptc "github.com/COVESA/vsomeip-sub001/network/protocol"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

var validate = validator.New()

// ServicePartition is one entry of the partition_id(service, instance)
// table: two services sharing a partition reuse the same remote client
// endpoint.
type ServicePartition struct {
	Service   uint16 `mapstructure:"service" json:"service" yaml:"service" validate:"required"`
	Instance  uint16 `mapstructure:"instance" json:"instance" yaml:"instance" validate:"required"`
	Partition uint16 `mapstructure:"partition" json:"partition" yaml:"partition"`
}

// TTLFactor is one entry of the ttl_factor_offers/ttl_factor_subscribes
// tables: a per-(service,instance[,eventgroup]) multiplier applied to a
// remote TTL before it is installed locally.
type TTLFactor struct {
	Service    uint16 `mapstructure:"service" json:"service" yaml:"service" validate:"required"`
	Instance   uint16 `mapstructure:"instance" json:"instance" yaml:"instance" validate:"required"`
	Eventgroup uint16 `mapstructure:"eventgroup" json:"eventgroup" yaml:"eventgroup"`
	Factor     uint32 `mapstructure:"factor" json:"factor" yaml:"factor" validate:"required,min=1"`
}

// SecurePort is one entry of secure_port(address, port, reliable): a
// listener that requires policy-oracle approval before it accepts a peer.
type SecurePort struct {
	Address  string `mapstructure:"address" json:"address" yaml:"address"`
	Port     uint16 `mapstructure:"port" json:"port" yaml:"port" validate:"required"`
	Reliable bool   `mapstructure:"reliable" json:"reliable" yaml:"reliable"`
}

// SecureService is one entry of secure_service(service, instance).
type SecureService struct {
	Service  uint16 `mapstructure:"service" json:"service" yaml:"service" validate:"required"`
	Instance uint16 `mapstructure:"instance" json:"instance" yaml:"instance" validate:"required"`
}

// Settings is the full configuration consumed by this repo's components:
// own-address validation, the SD channel, every SD timer, TTL factors, the
// local client port range, partition/reliability/security policy tables,
// magic-cookie mode, and endpoint tuning.
type Settings struct {
	UnicastAddress string `mapstructure:"unicast_address" json:"unicast_address" yaml:"unicast_address" validate:"required,ip"`
	Netmask        string `mapstructure:"netmask" json:"netmask" yaml:"netmask" validate:"required"`

	SDMulticast string                 `mapstructure:"sd_multicast" json:"sd_multicast" yaml:"sd_multicast" validate:"required,ip"`
	SDPort      uint16                 `mapstructure:"sd_port" json:"sd_port" yaml:"sd_port" validate:"required"`
	SDProtocol  libptc.NetworkProtocol `mapstructure:"sd_protocol" json:"sd_protocol" yaml:"sd_protocol"`

	TTL                  uint32          `mapstructure:"ttl" json:"ttl" yaml:"ttl" validate:"required"`
	InitialDelayMin      libdur.Duration `mapstructure:"initial_delay_min" json:"initial_delay_min" yaml:"initial_delay_min"`
	InitialDelayMax      libdur.Duration `mapstructure:"initial_delay_max" json:"initial_delay_max" yaml:"initial_delay_max"`
	RepetitionsBaseDelay libdur.Duration `mapstructure:"repetitions_base_delay" json:"repetitions_base_delay" yaml:"repetitions_base_delay"`
	RepetitionsMax       int             `mapstructure:"repetitions_max" json:"repetitions_max" yaml:"repetitions_max"`
	CyclicOfferDelay     libdur.Duration `mapstructure:"cyclic_offer_delay" json:"cyclic_offer_delay" yaml:"cyclic_offer_delay" validate:"required"`
	OfferDebounceTime    libdur.Duration `mapstructure:"sd_offer_debounce_time" json:"sd_offer_debounce_time" yaml:"sd_offer_debounce_time"`
	FindDebounceTime     libdur.Duration `mapstructure:"sd_find_debounce_time" json:"sd_find_debounce_time" yaml:"sd_find_debounce_time"`

	TTLFactorOffers     []TTLFactor `mapstructure:"ttl_factor_offers" json:"ttl_factor_offers" yaml:"ttl_factor_offers"`
	TTLFactorSubscribes []TTLFactor `mapstructure:"ttl_factor_subscribes" json:"ttl_factor_subscribes" yaml:"ttl_factor_subscribes"`

	ClientPortMin uint16             `mapstructure:"client_port_min" json:"client_port_min" yaml:"client_port_min"`
	ClientPortMax uint16             `mapstructure:"client_port_max" json:"client_port_max" yaml:"client_port_max"`
	Partitions    []ServicePartition `mapstructure:"partitions" json:"partitions" yaml:"partitions"`

	SecureServices []SecureService `mapstructure:"secure_services" json:"secure_services" yaml:"secure_services"`
	SecurePorts    []SecurePort    `mapstructure:"secure_ports" json:"secure_ports" yaml:"secure_ports"`

	MagicCookiesEnabled bool `mapstructure:"magic_cookies_enabled" json:"magic_cookies_enabled" yaml:"magic_cookies_enabled"`

	MaxMessageSize         uint32          `mapstructure:"max_message_size" json:"max_message_size" yaml:"max_message_size" validate:"required"`
	BufferShrinkThreshold  uint32          `mapstructure:"buffer_shrink_threshold" json:"buffer_shrink_threshold" yaml:"buffer_shrink_threshold"`
	QueueLimit             uint32          `mapstructure:"queue_limit" json:"queue_limit" yaml:"queue_limit"`
	SendTimeout            libdur.Duration `mapstructure:"send_timeout" json:"send_timeout" yaml:"send_timeout" validate:"required"`
	ShutdownTimeout        libdur.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required"`
}

// Decode unmarshals v's full contents into a Settings value. It composes a
// mapstructure decode hook handling duration.Duration's TextUnmarshaler
// implementation alongside a string-to-slice hook for comma-separated
// list fields.
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&s, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate runs struct tag validation plus the address/port cross-checks
// validator tags alone cannot express.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if net.ParseIP(s.UnicastAddress) == nil {
		return fmt.Errorf("config: unicast_address %q is not a valid IP", s.UnicastAddress)
	}
	if _, _, err := net.ParseCIDR(s.UnicastAddress + "/" + s.Netmask); err != nil {
		if net.ParseIP(s.Netmask) == nil {
			return fmt.Errorf("config: netmask %q is neither a CIDR prefix nor a dotted mask", s.Netmask)
		}
	}
	if s.ClientPortMax != 0 && s.ClientPortMax < s.ClientPortMin {
		return fmt.Errorf("config: client_port_max %d is below client_port_min %d", s.ClientPortMax, s.ClientPortMin)
	}
	return nil
}

// Subnet resolves unicast_address/netmask into a *net.IPNet for use by
// discovery's subscribe-option validation: endpoint options must not name
// an address outside the configured subnet.
func (s Settings) Subnet() (*net.IPNet, error) {
	if ip := net.ParseIP(s.Netmask); ip != nil {
		mask := ip.To4()
		if mask == nil {
			mask = ip.To16()
		}
		return &net.IPNet{IP: net.ParseIP(s.UnicastAddress).Mask(net.IPMask(mask)), Mask: net.IPMask(mask)}, nil
	}
	_, ipnet, err := net.ParseCIDR(s.UnicastAddress + "/" + s.Netmask)
	return ipnet, err
}

// ClientPortRange converts the flat min/max fields into the
// endpointmanager.PortRange type consumed by FindOrCreateRemoteClient's
// bind-error recovery.
func (s Settings) ClientPortRange() endpointmanager.PortRange {
	return endpointmanager.PortRange{Min: s.ClientPortMin, Max: s.ClientPortMax}
}
