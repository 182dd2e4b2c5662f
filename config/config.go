// Package config holds the compiler's tunable options.
//
// The shape follows the engine.Config / linker.InstanceConfig convention
// used elsewhere in this module's ancestry: a small struct with documented
// zero values, built up via functional options rather than a constructor
// with a long positional parameter list.
package config

// Config controls how the Move-to-Stylus backend emits its output module.
type Config struct {
	// MemoryLimitPages caps the generated module's linear memory growth, in
	// 64KiB WASM pages. 0 means unbounded (the Stylus host enforces its own
	// ceiling).
	MemoryLimitPages uint32

	// EmitNameSection records whether a WASM custom "name" section is
	// requested. The compiler does not read it: no name section is emitted
	// whatever its value.
	EmitNameSection bool

	// StrictEnums enforces the recommended policy for Open Question (a): the
	// enum itself must be drop-only. Every variant's field types must be
	// classifiable regardless of this setting; StrictEnums only gates the
	// ability-set check.
	StrictEnums bool

	// InitialMemoryPages is the module's starting linear memory size, in
	// 64KiB pages. Must be at least enough to hold the runtime's static
	// data segment; the bump allocator grows from here via memory.grow.
	InitialMemoryPages uint32
}

// Option mutates a Config being built.
type Option func(*Config)

// Default returns the compiler's default configuration: one initial page,
// unbounded growth, no name section, strict enum validation.
func Default() Config {
	return Config{
		InitialMemoryPages: 1,
		StrictEnums:        true,
	}
}

// New builds a Config starting from Default and applying opts in order.
func New(opts ...Option) Config {
	cfg := Default()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMemoryLimitPages caps linear memory growth at n pages.
func WithMemoryLimitPages(n uint32) Option {
	return func(c *Config) { c.MemoryLimitPages = n }
}

// WithNameSection toggles custom name-section emission.
func WithNameSection(enabled bool) Option {
	return func(c *Config) { c.EmitNameSection = enabled }
}

// WithStrictEnums toggles the Open-Question-(a) enum acceptance policy.
func WithStrictEnums(strict bool) Option {
	return func(c *Config) { c.StrictEnums = strict }
}

// WithInitialMemoryPages sets the module's starting linear memory size.
func WithInitialMemoryPages(n uint32) Option {
	return func(c *Config) { c.InitialMemoryPages = n }
}
