// Copyright 2026 The RHI Authors. All rights reserved.

package debug

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
)

// unwritten marks a trace-buffer slot an instrumented shader
// never reached; DecodeTrace skips it rather than reporting a
// spurious all-zero invocation.
const unwritten = ^uint32(0)

// recordHeader is the fixed prefix of every debug-trace record:
// a dense array the instrumented shader writes one entry of into
// per invocation that passes the configured trace coordinate
// test, laid out little-endian by the shader compiler's injected
// code.
const recordHeader = 8 // invocation uint32 + source line uint32

// TraceRecord is one decoded invocation from a debug-trace
// storage buffer, ordered by SourceLine for the report (§9: "per
// invocation, ordered by source line").
type TraceRecord struct {
	Invocation uint32
	SourceLine uint32
	Values     []float32
}

// DecodeTrace parses a debug-trace buffer laid out as a dense
// array of fixed-size records (an invocation index, a source
// line, then valuesPerRecord float32 values), skipping any slot
// still holding the unwritten sentinel. It returns records sorted
// by SourceLine, then by Invocation.
func DecodeTrace(data []byte, valuesPerRecord int) []TraceRecord {
	stride := recordHeader + 4*valuesPerRecord
	if stride <= 0 {
		return nil
	}
	var out []TraceRecord
	for off := 0; off+stride <= len(data); off += stride {
		inv := binary.LittleEndian.Uint32(data[off:])
		if inv == unwritten {
			continue
		}
		line := binary.LittleEndian.Uint32(data[off+4:])
		vals := make([]float32, valuesPerRecord)
		for i := 0; i < valuesPerRecord; i++ {
			bits := binary.LittleEndian.Uint32(data[off+recordHeader+4*i:])
			vals[i] = math.Float32frombits(bits)
		}
		out = append(out, TraceRecord{Invocation: inv, SourceLine: line, Values: vals})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceLine != out[j].SourceLine {
			return out[i].SourceLine < out[j].SourceLine
		}
		return out[i].Invocation < out[j].Invocation
	})
	return out
}

// Report is the structure delivered to the façade's shader-debug
// callback for one instrumented dispatch or draw.
type Report struct {
	Stage   string
	Task    string
	Shader  string
	Records []TraceRecord
}

// String renders Report as the per-invocation textual report
// described in §9: one line per record, ordered by source line,
// whitespace unspecified beyond that ordering.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s/%s\n", r.Stage, r.Task, r.Shader)
	for _, rec := range r.Records {
		fmt.Fprintf(&b, "  line %d invocation %d: %v\n", rec.SourceLine, rec.Invocation, rec.Values)
	}
	return b.String()
}
