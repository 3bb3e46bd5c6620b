package calib

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/mxcheck/internal/logger"
	"github.com/samcharles93/mxcheck/internal/mxgemm"
	"github.com/samcharles93/mxcheck/internal/tensor"
	"github.com/samcharles93/mxcheck/internal/verify"
)

// Status of a finished case.
const (
	StatusPassed   = "passed"
	StatusMismatch = "mismatch"
	StatusError    = "error"
)

// Result is the outcome of one case.
type Result struct {
	ID        string         `json:"id"`
	Case      Case           `json:"case"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Grid      int            `json:"grid"`
	Stats     verify.Stats   `json:"stats"`
	Kernels   []KernelTiming `json:"kernels"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Err       error          `json:"-"`
	Output    *tensor.Mat    `json:"-"`
	Inputs    *Inputs        `json:"-"`
}

// KernelTiming records how long one kernel launch took.
type KernelTiming struct {
	Name    string        `json:"name"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Passed reports whether both kernels agreed.
func (r Result) Passed() bool {
	return r.Status == StatusPassed
}

// Runner launches the candidate and oracle kernels on each case and compares
// their outputs.
type Runner struct {
	Log       logger.Logger
	Workers   int
	Tolerance verify.Tolerance
	Candidate mxgemm.Kernel
	Oracle    mxgemm.Kernel

	// KeepData retains inputs and the candidate output on the Result.
	KeepData bool
}

// NewRunner returns a Runner checking the tiled kernel against the explicit
// one with the default tolerance.
func NewRunner(log logger.Logger, workers int) *Runner {
	if log == nil {
		log = logger.Discard()
	}
	return &Runner{
		Log:       log,
		Workers:   workers,
		Tolerance: verify.Default,
		Candidate: mxgemm.Tiled{},
		Oracle:    mxgemm.Explicit{},
	}
}

// Run executes a single case. Errors are reported on the Result; the run
// itself never fails.
func (r *Runner) Run(ctx context.Context, c Case) Result {
	res := Result{
		ID:        uuid.NewString(),
		Case:      c,
		Name:      c.Name(),
		CreatedAt: time.Now().UTC(),
	}
	log := r.Log.With("case", res.Name, "id", res.ID)

	fail := func(err error) Result {
		res.Err = err
		res.Error = err.Error()
		res.Status = StatusError
		if errors.Is(err, verify.ErrNumericMismatch) {
			res.Status = StatusMismatch
		}
		log.Error("case failed", "status", res.Status, "error", err)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	in, err := BuildInputs(c)
	if err != nil {
		return fail(err)
	}
	if r.KeepData {
		res.Inputs = in
	}
	cfg := c.Config(r.Workers)
	res.Grid = mxgemm.Grid(cfg, c.M, c.N)
	log.Debug("inputs ready", "grid", res.Grid, "scale_stride", in.ScaleStride)

	got, err := r.launch(&res, r.Candidate, cfg, in.Args)
	if err != nil {
		return fail(err)
	}
	want, err := r.launch(&res, r.Oracle, cfg, in.Args)
	if err != nil {
		return fail(err)
	}
	if r.KeepData {
		res.Output = got
	}
	if want.HasNonFinite() {
		log.Warn("oracle output has non-finite values", "kernel", r.Oracle.Name())
	}

	res.Stats, _ = verify.Compare(got.Data, want.Data)
	if err := verify.AllClose(got.Data, want.Data, r.Tolerance); err != nil {
		return fail(err)
	}
	res.Status = StatusPassed
	log.Info("case passed", "max_abs", res.Stats.MaxAbs, "max_rel", res.Stats.MaxRel)
	return res
}

func (r *Runner) launch(res *Result, k mxgemm.Kernel, cfg mxgemm.Config, args mxgemm.Args) (*tensor.Mat, error) {
	m, n, _ := args.Dims()
	out := tensor.NewMat(m, n)
	start := time.Now()
	if err := k.Launch(cfg, args, &out); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	res.Kernels = append(res.Kernels, KernelTiming{Name: k.Name(), Elapsed: elapsed})
	r.Log.Debug("kernel finished", "case", res.Name, "kernel", k.Name(), "elapsed", elapsed)
	return &out, nil
}

// RunAll executes cases in order, stopping early when ctx is cancelled.
// Cases not reached are absent from the returned slice.
func (r *Runner) RunAll(ctx context.Context, cases []Case) []Result {
	results := make([]Result, 0, len(cases))
	for _, c := range cases {
		if ctx.Err() != nil {
			r.Log.Warn("run cancelled", "completed", len(results), "total", len(cases))
			break
		}
		results = append(results, r.Run(ctx, c))
	}
	return results
}

// Summary counts results by status.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Mismatch int `json:"mismatch"`
	Errors   int `json:"errors"`
}

func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusMismatch:
			s.Mismatch++
		default:
			s.Errors++
		}
	}
	return s
}

// OK reports whether every result passed.
func (s Summary) OK() bool {
	return s.Total > 0 && s.Passed == s.Total
}
