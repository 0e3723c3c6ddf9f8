/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

// Package errors provides the error taxonomy shared by every component of the
// routing/service-discovery core: a CodeError hierarchy with one numeric
// range per component, stack-trace capture and parent chaining, compatible
// with errors.Is/errors.As.
package errors

// CodeError is a numeric classification of an error, grouped by component
// using the MinPkg* ranges below: one hundred codes per component, giving
// each of the six components of this core its own block.
type CodeError uint16

const (
	MinPkgWire            CodeError = 100
	MinPkgEndpoint        CodeError = 200
	MinPkgEndpointManager CodeError = 300
	MinPkgEventRegistry   CodeError = 400
	MinPkgRoutingHost     CodeError = 500
	MinPkgRoutingClient   CodeError = 600
	MinPkgDiscovery       CodeError = 700
	MinPkgConfig          CodeError = 800

	MinAvailable CodeError = 900
)
