// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package log implements a structured, leveled logger in the log15
// tradition: a Logger carries a fixed context of key/value pairs, and
// each call site appends its own pairs on top of it.
package log

import (
	"os"
	"time"

	"github.com/go-stack/stack"
)

const errorKey = "LOG_ERROR"

// Lvl is a logging severity level, in decreasing order of severity
// (increasing noise): LvlCrit is 0, LvlTrace the largest.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

// String returns the short, fixed-width name of the level.
func (l Lvl) String() string {
	switch l {
	case LvlTrace:
		return "trce"
	case LvlDebug:
		return "dbug"
	case LvlInfo:
		return "info"
	case LvlWarn:
		return "warn"
	case LvlError:
		return "eror"
	case LvlCrit:
		return "crit"
	default:
		return "unkn"
	}
}

// LvlFromString returns the Lvl matching a name, useful for parsing a
// command line flag or config value.
func LvlFromString(s string) (Lvl, error) {
	switch s {
	case "trace", "trce":
		return LvlTrace, nil
	case "debug", "dbug":
		return LvlDebug, nil
	case "info":
		return LvlInfo, nil
	case "warn":
		return LvlWarn, nil
	case "error", "eror":
		return LvlError, nil
	case "crit":
		return LvlCrit, nil
	default:
		return LvlDebug, errUnknownLevel(s)
	}
}

type errUnknownLevel string

func (e errUnknownLevel) Error() string { return "unknown level: " + string(e) }

// Record is what a Logger asks its Handler to write.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

// Ctx is a map of key/value pairs, usable in place of an alternating
// key,value,key,value... argument list wherever that reads awkwardly.
type Ctx map[string]interface{}

func (c Ctx) toArray() []interface{} {
	arr := make([]interface{}, 0, len(c)*2)
	for k, v := range c {
		arr = append(arr, k, v)
	}
	return arr
}

// Logger writes leveled, key/value-annotated messages to a Handler.
type Logger interface {
	// New returns a new Logger with this logger's context plus ctx.
	New(ctx ...interface{}) Logger

	SetHandler(h Handler)

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

// Root returns the root logger. Component packages call Root().New(...)
// to derive a logger annotated with their own name.
func Root() Logger { return root }

var root = &logger{h: new(swapHandler)}

func init() {
	root.SetHandler(LvlFilterHandler(LvlInfo, StreamHandler(os.Stderr, TerminalFormat())))
}

// New creates a new logger rooted at the package root with the given
// context.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

func (l *logger) New(ctx ...interface{}) Logger {
	child := &logger{ctx: newContext(l.ctx, ctx), h: new(swapHandler)}
	child.SetHandler(l.h)
	return child
}

func newContext(prefix, suffix []interface{}) []interface{} {
	normalized := normalize(suffix)
	out := make([]interface{}, len(prefix)+len(normalized))
	n := copy(out, prefix)
	copy(out[n:], normalized)
	return out
}

func normalize(ctx []interface{}) []interface{} {
	if len(ctx) == 1 {
		if m, ok := ctx[0].(Ctx); ok {
			return m.toArray()
		}
	}
	if len(ctx)%2 != 0 {
		ctx = append(ctx, nil, errorKey, "normalized odd number of arguments")
	}
	return ctx
}

func (l *logger) write(msg string, lvl Lvl, ctx []interface{}) {
	l.h.Log(&Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  newContext(l.ctx, ctx),
		Call: stack.Caller(2),
	})
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(msg, LvlTrace, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(msg, LvlDebug, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(msg, LvlInfo, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(msg, LvlWarn, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(msg, LvlError, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{}) {
	l.write(msg, LvlCrit, ctx)
	os.Exit(1)
}

func (l *logger) SetHandler(h Handler) { l.h.Swap(h) }

// Trace/Debug/Info/Warn/Error/Crit on the package itself log through the
// root logger, mirroring the teacher's package-level convenience calls.
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
