// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package region

import "github.com/grailbio/base/must"

// Float64s is a float64 field attached to a handle. Each index of the
// handle holds Width consecutive values, so that a field with width w
// is a row-major (Len × w) matrix whose rows follow the handle's
// partition.
type Float64s struct {
	*Handle
	width int
	data  []float64
}

// NewFloat64s attaches a new zeroed float64 field of the given width
// to handle h.
func NewFloat64s(h *Handle, width int) *Float64s {
	must.Truef(width > 0, "region %s: field width %d", h, width)
	return &Float64s{Handle: h, width: width, data: make([]float64, h.Len()*width)}
}

// Width returns the number of values per index.
func (f *Float64s) Width() int { return f.width }

// Values returns the entire backing slice.
func (f *Float64s) Values() []float64 { return f.data }

// Shard returns the values held by the provided shard.
func (f *Float64s) Shard(shard int) []float64 {
	b := f.Bounds(shard)
	lo, hi := b.Lo*f.width, (b.Hi+1)*f.width
	return f.data[lo:hi:hi]
}

// Row returns the values at global index i.
func (f *Float64s) Row(i int) []float64 {
	lo, hi := i*f.width, (i+1)*f.width
	return f.data[lo:hi:hi]
}

// Int64s is an int64 field attached to a handle. See Float64s.
type Int64s struct {
	*Handle
	width int
	data  []int64
}

// NewInt64s attaches a new zeroed int64 field of the given width to
// handle h.
func NewInt64s(h *Handle, width int) *Int64s {
	must.Truef(width > 0, "region %s: field width %d", h, width)
	return &Int64s{Handle: h, width: width, data: make([]int64, h.Len()*width)}
}

// Width returns the number of values per index.
func (f *Int64s) Width() int { return f.width }

// Values returns the entire backing slice.
func (f *Int64s) Values() []int64 { return f.data }

// Shard returns the values held by the provided shard.
func (f *Int64s) Shard(shard int) []int64 {
	b := f.Bounds(shard)
	lo, hi := b.Lo*f.width, (b.Hi+1)*f.width
	return f.data[lo:hi:hi]
}

// Row returns the values at global index i.
func (f *Int64s) Row(i int) []int64 {
	lo, hi := i*f.width, (i+1)*f.width
	return f.data[lo:hi:hi]
}

// Uint8s is a uint8 field attached to a handle. See Float64s.
type Uint8s struct {
	*Handle
	width int
	data  []uint8
}

// NewUint8s attaches a new zeroed uint8 field of the given width to
// handle h.
func NewUint8s(h *Handle, width int) *Uint8s {
	must.Truef(width > 0, "region %s: field width %d", h, width)
	return &Uint8s{Handle: h, width: width, data: make([]uint8, h.Len()*width)}
}

// Width returns the number of values per index.
func (f *Uint8s) Width() int { return f.width }

// Values returns the entire backing slice.
func (f *Uint8s) Values() []uint8 { return f.data }

// Shard returns the values held by the provided shard.
func (f *Uint8s) Shard(shard int) []uint8 {
	b := f.Bounds(shard)
	lo, hi := b.Lo*f.width, (b.Hi+1)*f.width
	return f.data[lo:hi:hi]
}

// Row returns the values at global index i.
func (f *Uint8s) Row(i int) []uint8 {
	lo, hi := i*f.width, (i+1)*f.width
	return f.data[lo:hi:hi]
}
