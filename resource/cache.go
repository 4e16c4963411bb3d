// Copyright 2026 The RHI Authors. All rights reserved.

package resource

import (
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// contentHash derives a cache key for a creation descriptor.
// Descriptors are small, comparison-by-value structs (pipeline
// state vectors, descriptor-set-layout signatures, render-pass
// attachment lists, sampler state, ...), so hashing their
// formatted representation is both deterministic and cheap
// enough not to matter next to the cost of the GPU object it
// guards. Collisions are never trusted blindly: every cache hit
// is confirmed with a reflect.DeepEqual before being returned,
// per the "collisions fall back to deep equality" rule.
func contentHash(desc any) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%#v", desc))
}

// equalDesc compares two descriptors for the deep-equality
// fallback used on hash collisions.
func equalDesc(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
