package config

import "testing"

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.InitialMemoryPages != 1 {
		t.Errorf("InitialMemoryPages = %d, want 1", cfg.InitialMemoryPages)
	}
	if !cfg.StrictEnums {
		t.Error("StrictEnums should default to true")
	}
	if cfg.MemoryLimitPages != 0 {
		t.Errorf("MemoryLimitPages = %d, want 0 (unbounded)", cfg.MemoryLimitPages)
	}
}

func TestNewWithOptions(t *testing.T) {
	cfg := New(
		WithMemoryLimitPages(1024),
		WithNameSection(true),
		WithStrictEnums(false),
		WithInitialMemoryPages(4),
	)

	if cfg.MemoryLimitPages != 1024 {
		t.Errorf("MemoryLimitPages = %d, want 1024", cfg.MemoryLimitPages)
	}
	if !cfg.EmitNameSection {
		t.Error("EmitNameSection should be true")
	}
	if cfg.StrictEnums {
		t.Error("StrictEnums should be false")
	}
	if cfg.InitialMemoryPages != 4 {
		t.Errorf("InitialMemoryPages = %d, want 4", cfg.InitialMemoryPages)
	}
}
