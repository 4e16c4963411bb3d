// Copyright 2026 The RHI Authors. All rights reserved.

package debug

import (
	"encoding/binary"
	"math"
	"testing"
)

func appendRecord(buf []byte, inv, line uint32, vals []float32) []byte {
	rec := make([]byte, recordHeader+4*len(vals))
	binary.LittleEndian.PutUint32(rec, inv)
	binary.LittleEndian.PutUint32(rec[4:], line)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(rec[recordHeader+4*i:], math.Float32bits(v))
	}
	return append(buf, rec...)
}

func TestDecodeTraceOrdersBySourceLine(t *testing.T) {
	var buf []byte
	buf = appendRecord(buf, 5, 20, []float32{1, 2})
	buf = appendRecord(buf, 2, 10, []float32{3, 4})
	buf = appendRecord(buf, 1, 10, []float32{5, 6})

	recs := DecodeTrace(buf, 2)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].SourceLine != 10 || recs[0].Invocation != 1 {
		t.Fatalf("expected line 10 invocation 1 first, got %+v", recs[0])
	}
	if recs[1].SourceLine != 10 || recs[1].Invocation != 2 {
		t.Fatalf("expected line 10 invocation 2 second, got %+v", recs[1])
	}
	if recs[2].SourceLine != 20 {
		t.Fatalf("expected line 20 last, got %+v", recs[2])
	}
	if recs[0].Values[0] != 5 || recs[0].Values[1] != 6 {
		t.Fatalf("unexpected values: %v", recs[0].Values)
	}
}

func TestDecodeTraceSkipsUnwrittenSlots(t *testing.T) {
	var buf []byte
	buf = appendRecord(buf, unwritten, 0, []float32{0})
	buf = appendRecord(buf, 7, 3, []float32{9})

	recs := DecodeTrace(buf, 1)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Invocation != 7 {
		t.Fatalf("expected the written record to survive, got %+v", recs[0])
	}
}

func TestDecodeTraceIgnoresTrailingPartialRecord(t *testing.T) {
	var buf []byte
	buf = appendRecord(buf, 1, 1, []float32{1})
	buf = append(buf, 0, 1, 2) // shorter than one stride

	recs := DecodeTrace(buf, 1)
	if len(recs) != 1 {
		t.Fatalf("expected the trailing partial record to be ignored, got %d records", len(recs))
	}
}

func TestReportString(t *testing.T) {
	r := Report{
		Stage:  "fragment",
		Task:   "t3",
		Shader: "main.frag",
		Records: []TraceRecord{
			{Invocation: 0, SourceLine: 12, Values: []float32{1, 2}},
		},
	}
	s := r.String()
	if s == "" {
		t.Fatal("expected non-empty report string")
	}
}
