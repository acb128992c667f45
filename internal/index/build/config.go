package build

import "github.com/grafana/parquet-keyword-index/internal/filter"

// Config configures one index build. Its fields carry yaml tags; the kwidx
// CLI sets ErrorRate from a flag and takes the rest from DefaultConfig.
type Config struct {
	ErrorRate float64 `yaml:"error_rate"`

	// SmallFileThresholdBytes is the source-file-size cutoff between the
	// wide and narrow producer/consumer channel depths of spec §5.
	SmallFileThresholdBytes int64 `yaml:"small_file_threshold_bytes"`
	SmallFileQueueDepth     int   `yaml:"small_file_queue_depth"`
	LargeFileQueueDepth     int   `yaml:"large_file_queue_depth"`
}

// DefaultConfig returns the spec §5 defaults: a 250MB small/large file
// boundary, 1000-deep queue below it, 2-deep above it.
func DefaultConfig() Config {
	return Config{
		ErrorRate:               filter.DefaultErrorRate,
		SmallFileThresholdBytes: 250 * 1024 * 1024,
		SmallFileQueueDepth:     1000,
		LargeFileQueueDepth:     2,
	}
}

func (c Config) queueDepth(sourceSizeBytes int64) int {
	if sourceSizeBytes <= c.SmallFileThresholdBytes {
		return c.SmallFileQueueDepth
	}
	return c.LargeFileQueueDepth
}
