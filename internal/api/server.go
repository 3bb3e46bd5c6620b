// Package api exposes calibration runs over HTTP.
package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/mxcheck/internal/calib"
	"github.com/samcharles93/mxcheck/internal/logger"
)

// DefaultMaxDim bounds each of M, N and K accepted by POST /v1/runs.
const DefaultMaxDim = 4096

type Server struct {
	store  *RunStore
	runner *calib.Runner
	log    logger.Logger
	maxDim int
}

func NewServer(store *RunStore, runner *calib.Runner, log logger.Logger) *Server {
	if store == nil {
		store = NewRunStore()
	}
	if runner == nil {
		runner = calib.NewRunner(log, 0)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		store:  store,
		runner: runner,
		log:    log,
		maxDim: DefaultMaxDim,
	}
}

// SetMaxDim changes the per-dimension limit for submitted cases.
func (s *Server) SetMaxDim(n int) {
	if n > 0 {
		s.maxDim = n
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/v1/matrix", s.handleMatrix)
	e.GET("/v1/runs", s.handleListRuns)
	e.POST("/v1/runs", s.handleCreateRun)
	e.GET("/v1/runs/:id", s.handleGetRun)
	e.DELETE("/v1/runs/:id", s.handleDeleteRun)
}

func (s *Server) handleMatrix(c *echo.Context) error {
	cases := calib.Matrix()
	resp := MatrixResponse{Object: "list", Data: make([]MatrixEntry, 0, len(cases))}
	for _, cs := range cases {
		resp.Data = append(resp.Data, MatrixEntry{Name: cs.Name(), Case: cs})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c *echo.Context) error {
	runs := s.store.List()
	return c.JSON(http.StatusOK, RunListResponse{
		Object:  "list",
		Data:    runs,
		Summary: calib.Summarize(runs),
	})
}

// defaultCase fills the fields a request may omit.
func defaultCase() calib.Case {
	return calib.Case{
		BlockM:       32,
		BlockN:       32,
		BlockK:       128,
		RHSScale:     true,
		MXFormat:     "e2m1",
		NormalFormat: "e4m3",
	}
}

func (s *Server) handleCreateRun(c *echo.Context) error {
	cs, err := decodeCase(c.Request().Body)
	if err != nil {
		return writeCaseError(c, err)
	}
	if err := s.checkLimits(cs); err != nil {
		return writeCaseError(c, err)
	}
	if err := cs.Validate(); err != nil {
		return writeCaseError(c, err)
	}

	res := s.runner.Run(c.Request().Context(), cs)
	if res.Status == calib.StatusError {
		return writeCaseError(c, res.Err)
	}
	s.store.Put(res)
	s.log.Info("run stored", "id", res.ID, "case", res.Name, "status", res.Status)
	return c.JSON(http.StatusOK, res)
}

func decodeCase(r io.Reader) (calib.Case, error) {
	cs := defaultCase()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cs); err != nil {
		return cs, newInvalidRequest("", "invalid JSON body: "+err.Error())
	}
	return cs, nil
}

func (s *Server) checkLimits(cs calib.Case) error {
	for _, d := range []struct {
		name string
		v    int
	}{{"m", cs.M}, {"n", cs.N}, {"k", cs.K}} {
		if d.v > s.maxDim {
			return newInvalidRequest(d.name, fmt.Sprintf("%d exceeds limit %d", d.v, s.maxDim))
		}
	}
	return nil
}

func (s *Server) handleGetRun(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "run not found")
	}
	res, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleDeleteRun(c *echo.Context) error {
	id := c.Param("id")
	if id == "" || !s.store.Delete(id) {
		return writeNotFound(c, "run not found")
	}
	return c.JSON(http.StatusOK, DeleteRunResponse{
		ID:      id,
		Object:  "run",
		Deleted: true,
	})
}
