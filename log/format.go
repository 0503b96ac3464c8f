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
	"bytes"
	"fmt"
)

// Format turns a Record into a byte slice ready to write to a stream.
type Format interface {
	Format(r *Record) []byte
}

type formatFunc func(*Record) []byte

func (f formatFunc) Format(r *Record) []byte { return f(r) }

// TerminalFormat renders "<time> <level> <call site> <msg> k=v k=v ..."
// on one line, the layout the teacher's getLogMsg produces.
func TerminalFormat() Format {
	return formatFunc(func(r *Record) []byte {
		buf := &bytes.Buffer{}
		fmt.Fprintf(buf, "%s [%s] %-40s %s", r.Time.Format("2006-01-02T15:04:05-0700"), r.Lvl, r.Call, r.Msg)
		writeCtx(buf, r.Ctx)
		buf.WriteByte('\n')
		return buf.Bytes()
	})
}

func writeCtx(buf *bytes.Buffer, ctx []interface{}) {
	for i := 0; i < len(ctx); i += 2 {
		k, _ := ctx[i].(string)
		var v interface{}
		if i+1 < len(ctx) {
			v = ctx[i+1]
		}
		fmt.Fprintf(buf, " %s=%v", k, formatValue(v))
	}
}

func formatValue(v interface{}) interface{} {
	switch v := v.(type) {
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

// LogfmtFormat renders records in logfmt (key=value, no fixed columns),
// suitable for machine ingestion.
func LogfmtFormat() Format {
	return formatFunc(func(r *Record) []byte {
		buf := &bytes.Buffer{}
		fmt.Fprintf(buf, "t=%s lvl=%s msg=%q", r.Time.Format("2006-01-02T15:04:05-0700"), r.Lvl, r.Msg)
		writeCtx(buf, r.Ctx)
		buf.WriteByte('\n')
		return buf.Bytes()
	})
}
