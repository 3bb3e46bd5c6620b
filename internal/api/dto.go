package api

import "github.com/samcharles93/mxcheck/internal/calib"

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
}

type MatrixEntry struct {
	Name string     `json:"name"`
	Case calib.Case `json:"case"`
}

type MatrixResponse struct {
	Object string        `json:"object"`
	Data   []MatrixEntry `json:"data"`
}

type RunListResponse struct {
	Object  string         `json:"object"`
	Data    []calib.Result `json:"data"`
	Summary calib.Summary  `json:"summary"`
}

type DeleteRunResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
