package runtime

import (
	"github.com/deicod/gostache/nodes"
)

// inlineFrames is how many frames a Stack holds without allocating.
const inlineFrames = 8

// Stack is the chain of data frames visible to a render, newest first. It is
// a value: Push and Pop return a new Stack and leave the receiver untouched,
// so forks of a render never observe each other's frames.
//
// The newest frames live in a fixed array. Frames pushed out of the array are
// kept in an immutable linked list rather than dropped, so nesting depth is
// unbounded.
type Stack struct {
	frames [inlineFrames]Renderer
	size   int
	spill  *spilled
}

type spilled struct {
	frame Renderer
	next  *spilled
}

// NewStack creates a stack holding root as its only frame.
func NewStack(root Renderer) Stack {
	var s Stack
	return s.Push(root)
}

// Push returns the stack with frame as the newest frame.
func (s Stack) Push(frame Renderer) Stack {
	if s.size == inlineFrames {
		s.spill = &spilled{frame: s.frames[inlineFrames-1], next: s.spill}
		s.size--
	}
	copy(s.frames[1:s.size+1], s.frames[:s.size])
	s.frames[0] = frame
	s.size++
	return s
}

// Pop returns the stack without its newest frame.
func (s Stack) Pop() Stack {
	if s.size == 0 {
		return s
	}
	copy(s.frames[:s.size-1], s.frames[1:s.size])
	s.size--
	s.frames[s.size] = nil
	if s.spill != nil {
		s.frames[s.size] = s.spill.frame
		s.spill = s.spill.next
		s.size++
	}
	return s
}

// Len returns the number of frames.
func (s Stack) Len() int {
	n := s.size
	for p := s.spill; p != nil; p = p.next {
		n++
	}
	return n
}

// Top returns the newest frame.
func (s Stack) Top() (Renderer, bool) {
	if s.size == 0 {
		return nil, false
	}
	return s.frames[0], true
}

// each calls fn for every frame, newest first, until fn returns false.
func (s Stack) each(fn func(Renderer) bool) {
	for i := 0; i < s.size; i++ {
		if !fn(s.frames[i]) {
			return
		}
	}
	for p := s.spill; p != nil; p = p.next {
		if !fn(p.frame) {
			return
		}
	}
}

// Find resolves a single key on the newest frame that has it.
func (s Stack) Find(key string) (Renderer, bool) {
	if key == "." {
		return s.Top()
	}

	var found Renderer
	s.each(func(frame Renderer) bool {
		if value, ok := Lookup(frame, key); ok {
			found = value
			return false
		}
		return true
	})
	return found, found != nil
}

// Resolve looks up a dotted name. The first segment is searched on every
// frame, newest first; the remaining segments are resolved strictly inside
// the value found for it, without falling back to older frames.
func (s Stack) Resolve(name nodes.Name) (Renderer, bool) {
	if name.IsEmpty() {
		return nil, false
	}
	value, ok := s.Find(name.Keys[0])
	for _, key := range name.Keys[1:] {
		if !ok {
			break
		}
		value, ok = Lookup(value, key)
	}
	return value, ok
}
