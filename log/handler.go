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

package log

import (
	"io"
	"sync"
)

// Handler writes a Record somewhere: to a stream, to a filter, to
// nowhere at all.
type Handler interface {
	Log(r *Record)
}

// FuncHandler turns a plain function into a Handler.
type FuncHandler func(r *Record)

func (h FuncHandler) Log(r *Record) { h(r) }

// swapHandler wraps another Handler that may be swapped out at runtime,
// so a Logger created before its owner calls SetHandler still writes
// through the eventual handler.
type swapHandler struct {
	mu sync.Mutex
	h  Handler
}

func (s *swapHandler) Log(r *Record) {
	s.mu.Lock()
	h := s.h
	s.mu.Unlock()
	if h != nil {
		h.Log(r)
	}
}

func (s *swapHandler) Swap(h Handler) {
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

// StreamHandler writes each Record to w using the given Format,
// serializing concurrent writers.
func StreamHandler(w io.Writer, fmtr Format) Handler {
	var mu sync.Mutex
	return FuncHandler(func(r *Record) {
		mu.Lock()
		defer mu.Unlock()
		w.Write(fmtr.Format(r))
	})
}

// LvlFilterHandler returns a Handler that only forwards records at or
// above the given level of severity (i.e. maxLvl itself or less noisy).
func LvlFilterHandler(maxLvl Lvl, h Handler) Handler {
	return FuncHandler(func(r *Record) {
		if r.Lvl <= maxLvl {
			h.Log(r)
		}
	})
}

// DiscardHandler discards every record. Useful in tests that only care
// that logging doesn't panic.
func DiscardHandler() Handler {
	return FuncHandler(func(r *Record) {})
}

// MultiHandler fans a record out to every handler in hs.
func MultiHandler(hs ...Handler) Handler {
	return FuncHandler(func(r *Record) {
		for _, h := range hs {
			h.Log(r)
		}
	})
}
