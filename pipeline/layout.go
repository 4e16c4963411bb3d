// Copyright 2026 The RHI Authors. All rights reserved.

package pipeline

import (
	"fmt"
	"hash"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/karlsen-gfx/rhi/driver"
	"github.com/karlsen-gfx/rhi/handle"
)

// Binding describes one descriptor slot within a descriptor-set
// layout: its type, the shader stages that may access it, its
// binding number and, for arrays, its element count.
type Binding struct {
	Type   driver.DescType
	Stages driver.Stage
	Nr     int
	Len    int
}

// DescSetLayoutDesc is the creation descriptor for a single
// descriptor-set layout: an ordered list of bindings.
type DescSetLayoutDesc struct {
	Bindings []Binding
}

// PipelineLayoutDesc is the creation descriptor for a pipeline
// layout: the ordered list of descriptor-set layouts a pipeline
// draws its bindings from. Two layouts whose Sets compare equal
// are always interned to the same handle.
type PipelineLayoutDesc struct {
	Sets []DescSetLayoutDesc
}

// reflectSignature derives a stable hash of v's structure and
// field values by walking it with reflect, rather than relying
// on fmt's verb formatting. Layout descriptors are plain,
// acyclic value types (no interfaces, no pointers), which makes
// a reflective walk straightforward and avoids depending on
// fmt's (unspecified-for-hashing) output stability.
func reflectSignature(v any) uint64 {
	h := xxhash.New()
	writeValue(h, reflect.ValueOf(v))
	return h.Sum64()
}

func writeValue(h hash.Hash64, v reflect.Value) {
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			h.Write([]byte(t.Field(i).Name))
			writeValue(h, v.Field(i))
		}
	case reflect.Slice, reflect.Array:
		fmt.Fprintf(h, "len:%d", v.Len())
		for i := 0; i < v.Len(); i++ {
			writeValue(h, v.Index(i))
		}
	case reflect.Ptr:
		if v.IsNil() {
			h.Write([]byte("nil"))
			return
		}
		writeValue(h, v.Elem())
	default:
		fmt.Fprintf(h, "%v", v.Interface())
	}
}

// layoutCache interns PipelineLayoutDesc and DescSetLayoutDesc
// values by reflection signature. Distinct descriptors that
// happen to collide are disambiguated with reflect.DeepEqual,
// exactly as the resource manager's content-addressable cache
// does for other sharable resources.
type layoutCache struct {
	mu        sync.Mutex
	setSigs   map[uint64][]setEntry
	setTable  *handle.Table[DescSetLayoutDesc]
	pipeSigs  map[uint64][]pipeLayoutEntry
	pipeTable *handle.Table[PipelineLayoutDesc]
}

type setEntry struct {
	desc DescSetLayoutDesc
	h    handle.Handle
}

type pipeLayoutEntry struct {
	desc PipelineLayoutDesc
	h    handle.Handle
}

func newLayoutCache() *layoutCache {
	return &layoutCache{
		setSigs:   make(map[uint64][]setEntry),
		setTable:  handle.NewTable[DescSetLayoutDesc](handle.DescriptorSetLayout),
		pipeSigs:  make(map[uint64][]pipeLayoutEntry),
		pipeTable: handle.NewTable[PipelineLayoutDesc](handle.PipelineLayout),
	}
}

// InternSetLayout returns a stable handle for a descriptor-set
// layout with the given bindings, creating a new table entry
// only on the first occurrence of an equivalent layout.
func (c *layoutCache) InternSetLayout(desc DescSetLayoutDesc) handle.Handle {
	sig := reflectSignature(desc)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.setSigs[sig] {
		if reflect.DeepEqual(e.desc, desc) {
			return e.h
		}
	}
	h := c.setTable.Alloc(desc)
	c.setSigs[sig] = append(c.setSigs[sig], setEntry{desc: desc, h: h})
	return h
}

// InternPipelineLayout returns a stable handle for a pipeline
// layout built from the given descriptor-set layouts.
func (c *layoutCache) InternPipelineLayout(desc PipelineLayoutDesc) handle.Handle {
	sig := reflectSignature(desc)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.pipeSigs[sig] {
		if reflect.DeepEqual(e.desc, desc) {
			return e.h
		}
	}
	h := c.pipeTable.Alloc(desc)
	c.pipeSigs[sig] = append(c.pipeSigs[sig], pipeLayoutEntry{desc: desc, h: h})
	return h
}

// SetLayout returns the descriptor-set layout registered under h.
func (c *layoutCache) SetLayout(h handle.Handle) (DescSetLayoutDesc, bool) {
	return c.setTable.Get(h)
}

// PipelineLayout returns the pipeline layout registered under h.
func (c *layoutCache) PipelineLayout(h handle.Handle) (PipelineLayoutDesc, bool) {
	return c.pipeTable.Get(h)
}
