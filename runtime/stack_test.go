package runtime

import (
	"fmt"
	"testing"

	"github.com/deicod/gostache/nodes"
)

func TestStackPushPop(t *testing.T) {
	s := NewStack(String("root"))
	for i := 1; i <= 20; i++ {
		s = s.Push(Int(i))
	}
	if s.Len() != 21 {
		t.Fatalf("expected 21 frames, got %d", s.Len())
	}

	for i := 20; i >= 1; i-- {
		top, ok := s.Top()
		if !ok || top != Int(i) {
			t.Fatalf("expected top frame %d, got %v", i, top)
		}
		s = s.Pop()
	}
	top, ok := s.Top()
	if !ok || top != String("root") {
		t.Fatalf("expected root frame to survive deep nesting, got %v", top)
	}

	s = s.Pop()
	if _, ok := s.Top(); ok || s.Len() != 0 {
		t.Fatalf("expected empty stack, got %d frames", s.Len())
	}
	if s.Pop().Len() != 0 {
		t.Fatal("expected Pop on an empty stack to be a no-op")
	}
}

func TestStackIsAValue(t *testing.T) {
	base := NewStack(Map{"a": String("base")})
	forked := base.Push(Map{"a": String("fork")})

	if value, _ := base.Find("a"); value != String("base") {
		t.Fatalf("expected base stack to be unchanged, got %v", value)
	}
	if value, _ := forked.Find("a"); value != String("fork") {
		t.Fatalf("expected fork to see its own frame, got %v", value)
	}
}

func TestStackFindSearchesAllFrames(t *testing.T) {
	s := NewStack(Map{"deep": String("found")})
	for i := 0; i < 12; i++ {
		s = s.Push(Map{fmt.Sprintf("k%d", i): Int(i)})
	}

	if value, ok := s.Find("deep"); !ok || value != String("found") {
		t.Fatalf("expected key on a spilled frame to resolve, got %v, %v", value, ok)
	}
	if value, ok := s.Find("k11"); !ok || value != Int(11) {
		t.Fatalf("expected newest frame to resolve, got %v, %v", value, ok)
	}
	if _, ok := s.Find("nope"); ok {
		t.Fatal("expected unknown key to be missing")
	}
	if value, _ := s.Find("."); value == nil {
		t.Fatal("expected dot to resolve to the newest frame")
	}
}

func TestStackResolveDoesNotFallBack(t *testing.T) {
	s := NewStack(Map{
		"a": Map{"b": Map{"c": String("outer")}},
	}).Push(Map{
		"a": Map{"b": Map{}},
	})

	if _, ok := s.Resolve(nodes.ParseName(0, "a.b.c")); ok {
		t.Fatal("expected lookup to stay inside the first frame that has the root key")
	}
	if value, ok := s.Resolve(nodes.ParseName(0, "a.b")); !ok || value == nil {
		t.Fatalf("expected a.b to resolve, got %v, %v", value, ok)
	}
	if _, ok := s.Resolve(nodes.Name{}); ok {
		t.Fatal("expected empty name to be missing")
	}
}
