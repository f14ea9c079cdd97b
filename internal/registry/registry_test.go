package registry

import "testing"

func TestBaseRegistryRegisterGet(t *testing.T) {
	r := NewBaseRegistry[int]()

	if err := r.Register("a", 1); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("a", 2); err == nil {
		t.Fatal("expected error registering duplicate name")
	}
	if err := r.Register("", 3); err == nil {
		t.Fatal("expected error registering empty name")
	}

	v, ok := r.Get("a")
	if !ok || v != 1 {
		t.Fatalf("Get(a) = %d, %v; want 1, true", v, ok)
	}

	if _, ok := r.Get("missing"); ok {
		t.Fatal("expected Get(missing) to miss")
	}
}

func TestBaseRegistryListNamesCount(t *testing.T) {
	r := NewBaseRegistry[string]()
	r.Register("x", "one")
	r.Register("y", "two")

	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}
	if len(r.List()) != 2 {
		t.Fatalf("List() len = %d, want 2", len(r.List()))
	}
	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("Names() len = %d, want 2", len(names))
	}
}

func TestBaseRegistryRemoveClear(t *testing.T) {
	r := NewBaseRegistry[int]()
	r.Register("a", 1)

	if err := r.Remove("missing"); err == nil {
		t.Fatal("expected error removing missing item")
	}
	if err := r.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if r.Count() != 0 {
		t.Fatalf("Count() after remove = %d, want 0", r.Count())
	}

	r.Register("b", 2)
	r.Register("c", 3)
	r.Clear()
	if r.Count() != 0 {
		t.Fatalf("Count() after clear = %d, want 0", r.Count())
	}
}
