package allocator

// Scheme selects the intra-arena free-set representation (spec.md §4.2's
// scheme table) or the alternative whole-allocator arena model (spec.md
// §4.4). All three schemes are required to produce identical externally
// observable behaviour.
type Scheme int

const (
	// SchemeIndexStack tracks free slots with a moving-border index stack.
	SchemeIndexStack Scheme = iota
	// SchemeBitmap tracks free slots with a hierarchical bitmap tree and
	// bit_scan_forward (math/bits.TrailingZeros64).
	SchemeBitmap
	// SchemeCoalescing abandons fixed-size slots for intrusive, coalescing
	// free-list pages (spec.md §4.4).
	SchemeCoalescing
)

func (s Scheme) String() string {
	switch s {
	case SchemeIndexStack:
		return "index-stack"
	case SchemeBitmap:
		return "bitmap"
	case SchemeCoalescing:
		return "coalescing"
	default:
		return "unknown"
	}
}

// Config holds the tunables of an Allocator, following the teacher's
// functional-options shape (Config struct + Option funcs + defaultConfig).
type Config struct {
	// Alignment used when the caller requests alignment 0 ("natural
	// machine word", spec.md §3).
	WordAlignment uintptr

	// MinBlock is the smallest size class served by a pool.
	MinBlock uintptr

	// MaxDirectSize is the largest request a pool will serve; anything
	// larger bypasses pools entirely for the OS-direct path (spec.md §4.1).
	MaxDirectSize uintptr

	// InitialArenaCapacity is the slot count of the first arena created for
	// a size class (spec.md §3's "typically 1-256").
	InitialArenaCapacity uint32

	// MaxArenaCapacity caps the geometric growth of a pool's arena
	// capacity (spec.md §4.2's "up to a per-pool cap").
	MaxArenaCapacity uint32

	// ReleaseFootprintThreshold is the minimum arena footprint (bytes)
	// above which a fully-empty arena is eligible for release even if it
	// is the pool's only arena (spec.md §3's lifecycle rule).
	ReleaseFootprintThreshold uintptr

	// Scheme picks the free-set representation (or the alternative arena
	// model).
	Scheme Scheme

	// TrackOccupied enables the exact OccupiedBytes() accounting (spec.md
	// §6 permits either returning 0 or tracking it; this module tracks it
	// by default, see DESIGN.md).
	TrackOccupied bool

	// EnableLeakCheck turns on the debug-mode live-allocation ledger
	// (spec.md §7's debug-build invariant checks).
	EnableLeakCheck bool
}

// Option mutates a Config during construction.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		WordAlignment:             8,
		MinBlock:                  16,
		MaxDirectSize:             128 << 20, // 128 MiB, spec.md §4.1
		InitialArenaCapacity:      32,
		MaxArenaCapacity:          1 << 16,
		ReleaseFootprintThreshold: 1 << 20, // 1 MiB
		Scheme:                    SchemeIndexStack,
		TrackOccupied:             true,
		EnableLeakCheck:           false,
	}
}

// WithAlignment sets the alignment substituted for a requested alignment of 0.
func WithAlignment(alignment uintptr) Option {
	return func(c *Config) { c.WordAlignment = alignment }
}

// WithMinBlock sets the smallest size class.
func WithMinBlock(size uintptr) Option {
	return func(c *Config) { c.MinBlock = size }
}

// WithMaxDirectSize sets the pool/OS-direct boundary.
func WithMaxDirectSize(size uintptr) Option {
	return func(c *Config) { c.MaxDirectSize = size }
}

// WithInitialArenaCapacity sets the first arena's slot count for a class.
func WithInitialArenaCapacity(n uint32) Option {
	return func(c *Config) { c.InitialArenaCapacity = n }
}

// WithMaxArenaCapacity caps how large a single arena may grow.
func WithMaxArenaCapacity(n uint32) Option {
	return func(c *Config) { c.MaxArenaCapacity = n }
}

// WithReleaseFootprintThreshold sets the footprint above which a fully-empty
// sole arena is still released to the OS.
func WithReleaseFootprintThreshold(bytes uintptr) Option {
	return func(c *Config) { c.ReleaseFootprintThreshold = bytes }
}

// WithScheme selects the free-set representation or arena model.
func WithScheme(s Scheme) Option {
	return func(c *Config) { c.Scheme = s }
}

// WithOccupiedTracking toggles OccupiedBytes() accounting.
func WithOccupiedTracking(enabled bool) Option {
	return func(c *Config) { c.TrackOccupied = enabled }
}

// WithLeakCheck toggles the debug-mode live-allocation ledger.
func WithLeakCheck(enabled bool) Option {
	return func(c *Config) { c.EnableLeakCheck = enabled }
}
