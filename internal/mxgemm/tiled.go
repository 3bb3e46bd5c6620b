package mxgemm

import (
	"runtime"

	"github.com/samcharles93/mxcheck/internal/mx"
	"github.com/samcharles93/mxcheck/internal/tensor"
)

// Tiled computes each BlockM×BlockN output tile independently with its own
// float32 accumulator, stepping K by BlockK.
type Tiled struct{}

func (Tiled) Name() string { return "tiled" }

// launch is the read-only state shared by every tile of one call.
type launch struct {
	a, b           mx.Operand
	aScale, bScale *mx.Scale
	out            *tensor.Mat
	m, n, k        int
	bm, bn, bk     int
	gridM          int
}

type tileTask struct {
	l          *launch
	start, end int
	done       chan struct{}
}

// tileScratch is owned by one worker. Buffers grow to the largest block
// shape seen and are reused across launches.
type tileScratch struct {
	a   []float32
	b   []float32
	acc []float32
}

func (s *tileScratch) reserve(bm, bn, bk int) {
	s.a = growF32(s.a, bm*bk)
	s.b = growF32(s.b, bk*bn)
	s.acc = growF32(s.acc, bm*bn)
}

func growF32(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

type tilePool struct {
	size      int
	tasks     chan tileTask
	doneSlots chan chan struct{}
}

func newTilePool() *tilePool {
	size := runtime.GOMAXPROCS(0)
	if size < 1 {
		size = 1
	}
	p := &tilePool{
		size:      size,
		tasks:     make(chan tileTask, size*2),
		doneSlots: make(chan chan struct{}, size),
	}
	for i := 0; i < size; i++ {
		p.doneSlots <- make(chan struct{}, size)
	}
	for w := 0; w < size; w++ {
		go func() {
			var scratch tileScratch
			for task := range p.tasks {
				task.l.runRange(&scratch, task.start, task.end)
				task.done <- struct{}{}
			}
		}()
	}
	return p
}

var tileWorkPool = newTilePool()

// Launch writes A·B into out. Rows and columns of edge tiles that fall
// outside M×N are neither loaded nor stored.
func (Tiled) Launch(cfg Config, args Args, out *tensor.Mat) error {
	if err := validateArgs(cfg, args, out); err != nil {
		return err
	}
	aScale, err := resolveScale(args.A, args.AScale)
	if err != nil {
		return err
	}
	bScale, err := resolveScale(args.B, args.BScale)
	if err != nil {
		return err
	}

	m, n, k := args.Dims()
	if m == 0 || n == 0 {
		return nil
	}
	l := &launch{
		a: args.A, b: args.B,
		aScale: aScale, bScale: bScale,
		out: out,
		m:   m, n: n, k: k,
		bm: cfg.BlockM, bn: cfg.BlockN, bk: cfg.BlockK,
		gridM: cdiv(m, cfg.BlockM),
	}
	grid := Grid(cfg, m, n)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, grid, tileWorkPool.size)
	if workers <= 1 {
		var scratch tileScratch
		l.runRange(&scratch, 0, grid)
		return nil
	}

	chunk := cdiv(grid, workers)
	done := <-tileWorkPool.doneSlots
	sent := 0
	for start := 0; start < grid; start += chunk {
		tileWorkPool.tasks <- tileTask{
			l:     l,
			start: start,
			end:   min(start+chunk, grid),
			done:  done,
		}
		sent++
	}
	for i := 0; i < sent; i++ {
		<-done
	}
	tileWorkPool.doneSlots <- done
	return nil
}

func (l *launch) runRange(s *tileScratch, start, end int) {
	s.reserve(l.bm, l.bn, l.bk)
	for pid := start; pid < end; pid++ {
		l.runTile(s, pid)
	}
}

func (l *launch) runTile(s *tileScratch, pid int) {
	m0, n0 := tileCoords(pid, l.gridM, l.bm, l.bn)
	rows := min(l.bm, l.m-m0)
	cols := min(l.bn, l.n-n0)
	bm, bn, bk := l.bm, l.bn, l.bk

	acc := s.acc[:bm*bn]
	clear(acc)

	for k0 := 0; k0 < l.k; k0 += bk {
		aTile := s.a[:bm*bk]
		for i := 0; i < rows; i++ {
			row := aTile[i*bk : (i+1)*bk]
			for kk := range row {
				row[kk] = l.a.At(m0+i, k0+kk) * l.aScale.At(m0+i, k0+kk)
			}
		}

		bTile := s.b[:bk*bn]
		for kk := 0; kk < bk; kk++ {
			row := bTile[kk*bn : kk*bn+cols]
			for j := range row {
				row[j] = l.b.At(n0+j, k0+kk) * l.bScale.At(n0+j, k0+kk)
			}
		}

		for i := 0; i < rows; i++ {
			accRow := acc[i*bn : i*bn+cols]
			aRow := aTile[i*bk : (i+1)*bk]
			for kk, av := range aRow {
				bRow := bTile[kk*bn : kk*bn+cols]
				for j, bv := range bRow {
					// Explicit conversion keeps the product from fusing into
					// an FMA so rounding matches the explicit kernel.
					accRow[j] += float32(av * bv)
				}
			}
		}
	}

	for i := 0; i < rows; i++ {
		copy(l.out.Row(m0+i)[n0:n0+cols], acc[i*bn:i*bn+cols])
	}
}
