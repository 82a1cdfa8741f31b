// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package trigger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Stream layout, per node, all integers big endian:
//
//	name, script           string (uint32 length + UTF-8)
//	patterns               uint32 count + strings
//	kinds                  uint32 count + int32 each
//	id                     int64
//	active, folder         bool (1 byte)
//	trigger type           int32
//	temporary, multiline   bool
//	condition window       int32
//	child count            int64, followed by each child
const (
	maxStringLen = 16 << 20
	maxListLen   = 1 << 16
	maxChildren  = 1 << 20
)

// ErrCorruptStream is returned when a length prefix is out of range.
var ErrCorruptStream = errors.New("corrupt trigger stream")

type encoder struct {
	w   io.Writer
	buf [8]byte
	err error
}

func newEncoder(w io.Writer) *encoder { return &encoder{w: w} }

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) uint32(v uint32) {
	binary.BigEndian.PutUint32(e.buf[:4], v)
	e.write(e.buf[:4])
}

func (e *encoder) int32(v int32) { e.uint32(uint32(v)) }

func (e *encoder) int64(v int64) {
	binary.BigEndian.PutUint64(e.buf[:8], uint64(v))
	e.write(e.buf[:8])
}

func (e *encoder) boolean(v bool) {
	e.buf[0] = 0
	if v {
		e.buf[0] = 1
	}
	e.write(e.buf[:1])
}

func (e *encoder) str(s string) {
	e.uint32(uint32(len(s)))
	e.write([]byte(s))
}

func (e *encoder) strs(list []string) {
	e.uint32(uint32(len(list)))
	for _, s := range list {
		e.str(s)
	}
}

func (e *encoder) kinds(list []Kind) {
	e.uint32(uint32(len(list)))
	for _, k := range list {
		e.int32(int32(k))
	}
}

type decoder struct {
	r   io.Reader
	buf [8]byte
	err error
}

func newDecoder(r io.Reader) *decoder { return &decoder{r: r} }

func (d *decoder) read(p []byte) bool {
	if d.err != nil {
		return false
	}
	if _, err := io.ReadFull(d.r, p); err != nil {
		d.err = err
		return false
	}
	return true
}

func (d *decoder) uint32() uint32 {
	if !d.read(d.buf[:4]) {
		return 0
	}
	return binary.BigEndian.Uint32(d.buf[:4])
}

func (d *decoder) int32() int32 { return int32(d.uint32()) }

func (d *decoder) int64() int64 {
	if !d.read(d.buf[:8]) {
		return 0
	}
	return int64(binary.BigEndian.Uint64(d.buf[:8]))
}

func (d *decoder) boolean() bool {
	if !d.read(d.buf[:1]) {
		return false
	}
	return d.buf[0] != 0
}

func (d *decoder) length(max uint32) int {
	n := d.uint32()
	if d.err == nil && n > max {
		d.err = fmt.Errorf("%w: length %d exceeds %d", ErrCorruptStream, n, max)
	}
	if d.err != nil {
		return 0
	}
	return int(n)
}

func (d *decoder) str() string {
	n := d.length(maxStringLen)
	if n == 0 {
		return ""
	}
	p := make([]byte, n)
	if !d.read(p) {
		return ""
	}
	return string(p)
}

func (d *decoder) strs() []string {
	n := d.length(maxListLen)
	out := make([]string, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.str())
	}
	return out
}

func (d *decoder) kinds() []Kind {
	n := d.length(maxListLen)
	out := make([]Kind, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, Kind(d.int32()))
	}
	return out
}

// Serialize writes the node and its subtree to w.
func (n *Node) Serialize(w io.Writer) error {
	enc := newEncoder(w)
	n.encode(enc)
	return enc.err
}

func (n *Node) encode(enc *encoder) {
	n.mu.Lock()
	enc.str(n.name)
	enc.str(n.script)
	enc.strs(n.patterns)
	enc.kinds(n.kinds)
	enc.int64(n.id)
	enc.boolean(n.active)
	enc.boolean(n.folder)
	enc.int32(n.triggerType)
	enc.boolean(n.temporary)
	enc.boolean(n.multiline)
	enc.int32(int32(n.window))
	enc.int64(int64(len(n.children)))
	children := n.Children()
	n.mu.Unlock()

	for _, child := range children {
		child.encode(enc)
	}
}

// Restore reads a node and its subtree from r into n. The persisted id is
// discarded; n keeps the id it was issued at creation. In init mode every
// restored child is registered. On error the subtree may be incomplete:
// children restored before the failure stay attached.
func (n *Node) Restore(r io.Reader, initMode bool) error {
	_, err := n.decode(newDecoder(r), initMode)
	return err
}

// decode fills n from dec. It reports whether n's own fields were read; a
// later error means part of the subtree is missing.
func (n *Node) decode(dec *decoder, initMode bool) (bool, error) {
	name := dec.str()
	script := dec.str()
	patterns := dec.strs()
	kinds := dec.kinds()
	dec.int64() // persisted id
	active := dec.boolean()
	folder := dec.boolean()
	triggerType := dec.int32()
	temporary := dec.boolean()
	multiline := dec.boolean()
	window := dec.int32()
	children := dec.int64()
	if dec.err != nil {
		return false, fmt.Errorf("restore trigger %q: %w", name, dec.err)
	}
	if children < 0 || children > maxChildren {
		return false, fmt.Errorf("restore trigger %q: %w: %d children", name, ErrCorruptStream, children)
	}

	n.name = name
	n.SetScript(script)
	n.SetPatterns(patterns, kinds)
	n.active = active
	n.folder = folder
	n.triggerType = triggerType
	n.temporary = temporary
	n.SetMultiline(multiline)
	n.window = int(window)
	if n.id == 0 && n.env.Registry != nil {
		n.id = n.env.Registry.NewID()
	}

	n.env.Log.Debug().
		Str("trigger", n.name).
		Int64("trigger_id", n.id).
		Int64("children", children).
		Msg("restoring trigger")

	var err error
	for i := int64(0); i < children && err == nil; i++ {
		child := NewNode(n, n.env)
		var read bool
		if read, err = child.decode(dec, initMode); !read {
			child.Remove()
			continue
		}
		if initMode {
			child.Register()
		}
	}

	if len(n.children) > 0 {
		n.folder = true
	}
	return true, err
}
