package mxgemm

import (
	"runtime"

	"github.com/samcharles93/mxcheck/internal/mx"
)

const (
	defaultBlockM = 32
	defaultBlockN = 32
	defaultBlockK = 128

	maxBlock = 1024
)

// Config carries the launch-time block sizes. BlockK must be a multiple of
// mx.GroupSize so that a K step never splits a scale group.
type Config struct {
	BlockM  int
	BlockN  int
	BlockK  int
	Workers int
}

// DefaultConfig matches the calibration launch: 32×32 output tiles stepping
// K by 128.
func DefaultConfig() Config {
	return Config{
		BlockM:  defaultBlockM,
		BlockN:  defaultBlockN,
		BlockK:  defaultBlockK,
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Validate checks the block shape against the reduction length k.
func (c Config) Validate(k int) error {
	for _, b := range []struct {
		name string
		v    int
	}{{"block_m", c.BlockM}, {"block_n", c.BlockN}, {"block_k", c.BlockK}} {
		if b.v <= 0 || b.v > maxBlock {
			return mx.NewShapeError(b.name, "%d out of range (1..%d)", b.v, maxBlock)
		}
	}
	if c.BlockK%mx.GroupSize != 0 {
		return mx.NewShapeError("block_k", "%d is not a multiple of %d", c.BlockK, mx.GroupSize)
	}
	if k%c.BlockK != 0 {
		return mx.NewShapeError("block_k", "K=%d is not a multiple of block_k=%d", k, c.BlockK)
	}
	return nil
}

func cdiv(a, b int) int {
	return (a + b - 1) / b
}

// Grid returns the 1-D launch size ceil(M/BlockM) * ceil(N/BlockN).
func Grid(cfg Config, m, n int) int {
	if cfg.BlockM <= 0 || cfg.BlockN <= 0 {
		return 0
	}
	return cdiv(m, cfg.BlockM) * cdiv(n, cfg.BlockN)
}

// tileCoords maps a program id to its output tile origin. Program ids walk
// down M first.
func tileCoords(pid, gridM, blockM, blockN int) (int, int) {
	pidM := pid % gridM
	pidN := pid / gridM
	return pidM * blockM, pidN * blockN
}
