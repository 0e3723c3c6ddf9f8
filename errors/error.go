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

package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// FuncMap iterates an error's parent chain; return false to stop early.
type FuncMap func(e error) bool

// Error extends the standard error with a CodeError classification, a
// capture-site (file/line) and a parent chain, while staying compatible with
// errors.Is / errors.As via Unwrap.
type Error interface {
	error

	IsCode(code CodeError) bool
	HasCode(code CodeError) bool
	GetCode() CodeError

	Is(e error) bool
	HasParent() bool
	GetParent() []error
	Map(fct FuncMap) bool

	Add(parent ...error) Error
	SetParent(parent ...error) Error

	GetFile() string
	GetLine() int

	Unwrap() []error
}

type errImpl struct {
	code    CodeError
	message string
	file    string
	line    int
	parent  []error
}

// New creates a new Error with the given code and message, capturing the
// caller's file and line so helpers in this package report their caller's
// location rather than their own.
func New(code CodeError, message string, parent ...error) Error {
	_, file, line, _ := runtime.Caller(1)
	return &errImpl{
		code:    code,
		message: message,
		file:    file,
		line:    line,
		parent:  filterNil(parent),
	}
}

func filterNil(in []error) []error {
	out := make([]error, 0, len(in))
	for _, e := range in {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (e *errImpl) Error() string {
	if len(e.parent) == 0 {
		return fmt.Sprintf("[%d] %s", e.code, e.message)
	}
	return fmt.Sprintf("[%d] %s: %v", e.code, e.message, e.parent[0])
}

func (e *errImpl) IsCode(code CodeError) bool { return e.code == code }

func (e *errImpl) HasCode(code CodeError) bool {
	if e.code == code {
		return true
	}
	for _, p := range e.parent {
		if ce, ok := p.(Error); ok && ce.HasCode(code) {
			return true
		}
	}
	return false
}

func (e *errImpl) GetCode() CodeError { return e.code }

func (e *errImpl) Is(target error) bool {
	if o, ok := target.(*errImpl); ok {
		return o.code == e.code
	}
	return false
}

func (e *errImpl) HasParent() bool   { return len(e.parent) > 0 }
func (e *errImpl) GetParent() []error {
	out := make([]error, len(e.parent))
	copy(out, e.parent)
	return out
}

func (e *errImpl) Map(fct FuncMap) bool {
	if !fct(e) {
		return false
	}
	for _, p := range e.parent {
		if !fct(p) {
			return false
		}
	}
	return true
}

func (e *errImpl) Add(parent ...error) Error {
	e.parent = append(e.parent, filterNil(parent)...)
	return e
}

func (e *errImpl) SetParent(parent ...error) Error {
	e.parent = filterNil(parent)
	return e
}

func (e *errImpl) GetFile() string { return e.file }
func (e *errImpl) GetLine() int    { return e.line }

func (e *errImpl) Unwrap() []error { return e.parent }

// IsError reports whether err is (or wraps, via errors.As semantics) an
// Error produced by this package.
func IsError(err error) (Error, bool) {
	var e Error
	ok := stderrors.As(err, &e)
	return e, ok
}
