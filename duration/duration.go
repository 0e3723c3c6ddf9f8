/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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
 */

// Package duration provides a time.Duration-compatible type with a
// day-aware parser/formatter, used throughout this repo's configuration for
// every SD timer and TTL field: initial_delay_min/max,
// repetitions_base_delay, cyclic_offer_delay, send_timeout, and friends.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration wraps time.Duration and adds a "Nd" (days) unit to Parse/String,
// since vsomeip-style SD timers are most naturally expressed in
// seconds-to-days ranges rather than time.Duration's ns-to-hours notation.
type Duration time.Duration

func Seconds(n int64) Duration { return Duration(time.Duration(n) * time.Second) }
func Millis(n int64) Duration  { return Duration(time.Duration(n) * time.Millisecond) }
func Minutes(n int64) Duration { return Duration(time.Duration(n) * time.Minute) }
func Hours(n int64) Duration   { return Duration(time.Duration(n) * time.Hour) }
func Days(n int64) Duration    { return Duration(time.Duration(n) * 24 * time.Hour) }

func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

// Parse accepts the stdlib time.ParseDuration grammar extended with a
// leading "<n>d" component, e.g. "5d23h15m13s".
func Parse(s string) (Duration, error) {
	if s == "" {
		return 0, nil
	}
	rest := s
	var days int64
	if idx := strings.IndexByte(s, 'd'); idx > 0 {
		if n, err := strconv.ParseInt(s[:idx], 10, 64); err == nil {
			days = n
			rest = s[idx+1:]
		}
	}
	var base time.Duration
	if rest != "" {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return 0, fmt.Errorf("duration: invalid value %q: %w", s, err)
		}
		base = d
	}
	return Duration(time.Duration(days)*24*time.Hour + base), nil
}

// String renders the duration with a leading "Nd" component whenever it
// spans a full day or more, matching Parse's grammar.
func (d Duration) String() string {
	td := time.Duration(d)
	if td == 0 {
		return "0s"
	}
	neg := ""
	if td < 0 {
		neg = "-"
		td = -td
	}
	days := td / (24 * time.Hour)
	rest := td % (24 * time.Hour)
	if days == 0 {
		return neg + rest.String()
	}
	if rest == 0 {
		return fmt.Sprintf("%s%dd", neg, days)
	}
	return fmt.Sprintf("%s%dd%s", neg, days, rest.String())
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}
