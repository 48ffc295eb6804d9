package twitch

import (
	"sync"
	"testing"
)

func TestInternReturnsSameHandle(t *testing.T) {
	reg := NewRegistry()

	a := reg.Intern("Bob")
	b := reg.Intern(" #bob ")
	c := reg.Intern("BOB")

	if a != b || b != c {
		t.Fatalf("expected one handle, got %p %p %p", a, b, c)
	}
	if a.Name() != "bob" {
		t.Fatalf("name = %q, want %q", a.Name(), "bob")
	}
	if a.String() != "#bob" {
		t.Fatalf("string = %q, want %q", a.String(), "#bob")
	}
	if reg.Len() != 1 {
		t.Fatalf("len = %d, want 1", reg.Len())
	}
}

func TestInternDistinctNames(t *testing.T) {
	reg := NewRegistry()

	if reg.Intern("alice") == reg.Intern("bob") {
		t.Fatal("expected distinct handles for distinct names")
	}
	if reg.Intern("") != nil || reg.Intern(" # ") != nil {
		t.Fatal("expected nil handle for empty name")
	}
}

func TestInternConcurrent(t *testing.T) {
	reg := NewRegistry()

	const workers = 32
	handles := make([]*Channel, workers)

	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				handles[i] = reg.Intern("Race")
				return
			}
			handles[i] = reg.Intern("#race")
		}()
	}
	wg.Wait()

	for i, h := range handles {
		if h != handles[0] {
			t.Fatalf("handle %d differs from handle 0", i)
		}
	}
}

func TestInternAllDropsDuplicates(t *testing.T) {
	reg := NewRegistry()

	got := reg.InternAll([]string{"a", "#A", "", "b"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Name() != "a" || got[1].Name() != "b" {
		t.Fatalf("unexpected order: %v", got)
	}
}
