package lockfree

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// config holds the §6.1 module parameters plus the ambient-stack knobs
// (logger, metrics registerer, traversal parallelism) assembled by Option.
type config struct {
	load        int
	nbBucket    int
	hasher      Hasher
	logger      *zap.Logger
	registerer  prometheus.Registerer
	parallelism int
}

// Option configures a Map at construction, following the functional-options
// idiom used throughout the retrieval pack's constructors.
type Option func(*config)

// WithLoad sets the target average bucket depth that triggers a resize.
// Must be >= 1.
func WithLoad(load int) Option {
	return func(c *config) { c.load = load }
}

// WithBucketFanout sets the access trie's fan-out (nb_bucket). Must be >= 2;
// a power of two is recommended by spec §6.1 for cheap division in getBucket.
func WithBucketFanout(nbBucket int) Option {
	return func(c *config) { c.nbBucket = nbBucket }
}

// WithHasher overrides the default xxhash-based hash_function.
func WithHasher(h Hasher) Option {
	return func(c *config) { c.hasher = h }
}

// WithLogger attaches a zap.Logger for debug events when a trie growth is
// requested and when it completes; nothing else is logged. Defaults to
// zap.NewNop(): silent unless configured.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRegisterer arranges for the Map's MapCollector to be registered with
// the given prometheus.Registerer at construction time.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// WithParallelism sets the number of goroutines Elements uses; they split
// the list between them by claiming nodes from one shared cursor. A value
// <= 1 (the default) traverses sequentially.
func WithParallelism(n int) Option {
	return func(c *config) { c.parallelism = n }
}

func defaultConfig() config {
	return config{
		load:        4,
		nbBucket:    16,
		hasher:      defaultHasher,
		logger:      zap.NewNop(),
		parallelism: 1,
	}
}
