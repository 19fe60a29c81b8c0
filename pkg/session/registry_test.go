package session

import (
    "sync"
    "testing"
)

func TestRegistryCreateAssignsUniqueIDs(t *testing.T) {
    r := NewRegistry(0)
    a := r.Create()
    b := r.Create()
    if a.ID == b.ID { t.Fatalf("duplicate session ids: %d", a.ID) }
    if r.Lookup(a.ID) != a || r.Lookup(b.ID) != b { t.Fatalf("lookup mismatch") }
}

func TestRegistryConcurrentCreate(t *testing.T) {
    r := NewRegistry(0)
    const n = 32
    ids := make([]int64, n)
    var wg sync.WaitGroup
    for i := 0; i < n; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            ids[i] = r.Create().ID
        }(i)
    }
    wg.Wait()
    seen := make(map[int64]bool, n)
    for _, id := range ids {
        if seen[id] { t.Fatalf("duplicate id %d", id) }
        seen[id] = true
    }
    if r.Len() != n { t.Fatalf("want %d sessions, got %d", n, r.Len()) }
}

func TestRegistryBoundedPanicsAtCap(t *testing.T) {
    r := NewRegistry(2)
    r.Create()
    r.Create()
    defer func() {
        if recover() == nil { t.Fatalf("expected panic past capacity") }
    }()
    r.Create()
}

func TestRegistryRemoveIdempotent(t *testing.T) {
    r := NewRegistry(0)
    s := r.Create()
    r.Remove(s.ID)
    if r.Lookup(s.ID) != nil { t.Fatalf("session still present after remove") }
    r.Remove(s.ID) // second remove is a no-op
    if r.Len() != 0 { t.Fatalf("want empty registry") }
}

func TestRegistryCapCountsTotalCreations(t *testing.T) {
    r := NewRegistry(2)
    a := r.Create()
    b := r.Create()
    r.Remove(a.ID)
    r.Remove(b.ID)
    // removal never replenishes the lifetime quota
    defer func() {
        if recover() == nil { t.Fatalf("expected panic on third-ever creation") }
    }()
    r.Create()
}
