package cache

import (
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		RenderedSizeMB: 8,
		RenderedTTL:    time.Minute,
		LayoutEntries:  16,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSurfaceKey(t *testing.T) {
	base := "surface:1200:px8:abyss"

	t.Run("noFilters", func(t *testing.T) {
		got := SurfaceKey(1200, 8, "abyss", "", "", "")
		if got != base {
			t.Fatalf("expected %q, got %q", base, got)
		}
	})

	t.Run("filtersChangeKey", func(t *testing.T) {
		got := SurfaceKey(1200, 8, "abyss", "Endangered", "", "")
		if got == base {
			t.Fatalf("expected filtered key to differ from base, got %q", got)
		}
	})

	t.Run("stableKey", func(t *testing.T) {
		key1 := SurfaceKey(1200, 8, "abyss", "Endangered", "Bycatch", "fishing")
		key2 := SurfaceKey(1200, 8, "abyss", "Endangered", "Bycatch", "fishing")
		if key1 != key2 {
			t.Fatalf("expected stable key, got %q vs %q", key1, key2)
		}
	})

	t.Run("distinctFilters", func(t *testing.T) {
		key1 := SurfaceKey(1200, 8, "abyss", "Endangered", "", "")
		key2 := SurfaceKey(1200, 8, "abyss", "", "Endangered", "")
		if key1 == key2 {
			t.Fatalf("expected field position to matter, both %q", key1)
		}
	})
}

func TestMarkerKey(t *testing.T) {
	got := MarkerKey(42, 96, 96, 8)
	want := "marker:42:96x96:px8"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLayoutKey(t *testing.T) {
	if got := LayoutKey("", "", ""); got != "layout:all" {
		t.Fatalf("expected layout:all, got %q", got)
	}
	if LayoutKey("Endangered", "", "") == LayoutKey("Threatened", "", "") {
		t.Fatal("expected different filters to produce different keys")
	}
}

func TestRenderedRoundTrip(t *testing.T) {
	m := newTestManager(t)

	key := MarkerKey(7, 96, 96, 8)
	if _, ok := m.GetRendered(key); ok {
		t.Fatal("expected miss before set")
	}
	if err := m.SetRendered(key, []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatalf("SetRendered: %v", err)
	}
	data, ok := m.GetRendered(key)
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(data[1:4]) != "PNG" {
		t.Fatalf("unexpected cached bytes %v", data)
	}
}

func TestLayoutRoundTripAndInvalidate(t *testing.T) {
	m := newTestManager(t)

	key := LayoutKey("Endangered", "", "")
	m.SetLayout(key, []byte(`{"markers":[]}`))
	if _, ok := m.GetLayout(key); !ok {
		t.Fatal("expected hit after set")
	}

	m.InvalidateLayouts()
	if _, ok := m.GetLayout(key); ok {
		t.Fatal("expected miss after purge")
	}
}
