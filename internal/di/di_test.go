package di

import "testing"

type counter struct{ n int }

func TestContainer_LazySingleton(t *testing.T) {
	c := NewContainer()
	tok := NewToken[*counter]("test.counter")

	builds := 0
	RegisterToken(c, tok, func(ServiceRegistry) *counter {
		builds++
		return &counter{n: builds}
	})

	if builds != 0 {
		t.Fatal("factory ran before first Get")
	}

	a := GetToken(c, tok)
	b := GetToken(c, tok)
	if a != b {
		t.Error("expected the same instance")
	}
	if builds != 1 {
		t.Errorf("builds = %d, want 1", builds)
	}
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("base", 40)

	tok := NewToken[int]("test.sum")
	RegisterToken(c, tok, func(sr ServiceRegistry) int {
		return sr.Get("base").(int) + 2
	})

	if got := GetToken(c, tok); got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestContainer_MissingPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for missing service")
		}
	}()
	NewContainer().Get("nope")
}
