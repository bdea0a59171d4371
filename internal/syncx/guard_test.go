package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(42)

	if g.Get() != 42 {
		t.Errorf("Get() = %d, want 42", g.Get())
	}

	g.Set(7)
	if g.Get() != 7 {
		t.Errorf("Get() = %d, want 7", g.Get())
	}
}

func TestGuardUpdate(t *testing.T) {
	g := NewGuard(10)

	result := g.Update(func(v *int) any {
		*v += 5
		return *v
	})

	if result != 15 {
		t.Errorf("Update() = %v, want 15", result)
	}
	if g.Get() != 15 {
		t.Errorf("Get() = %d, want 15", g.Get())
	}
}

func TestGuardConcurrent(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Update(func(v *int) any {
				*v++
				return nil
			})
		}()
	}
	wg.Wait()

	if g.Get() != 100 {
		t.Errorf("Get() = %d, want 100", g.Get())
	}
}
