package pilive

import (
	"fmt"
	"sort"

	"github.com/baduanjin-lab/pilive/shared"
	"github.com/valyala/fasthttp"
)

// Master-data loading for the dashboard charts: per-analysis reference series
// recorded from master performers, compared against learner sessions.

var analysisEndpoints = map[string]string{
	"jointAngles": "analysis/joint-angles",
	"smoothness":  "analysis/smoothness",
	"symmetry":    "analysis/symmetry",
	"balance":     "analysis/balance",
}

// KnownAnalysisTypes lists the analysis types LoadMasterData accepts.
func KnownAnalysisTypes() []string {
	types := make([]string, 0, len(analysisEndpoints))
	for t := range analysisEndpoints {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// MasterSeries is one named data series within an analysis payload.
type MasterSeries struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// MasterData is the chart payload for one analysis type.
type MasterData struct {
	AnalysisType string         `json:"analysis_type"`
	Title        string         `json:"title,omitempty"`
	Timestamps   []float64      `json:"timestamps,omitempty"`
	Series       []MasterSeries `json:"series"`
}

type masterDataEnvelope struct {
	Success bool        `json:"success"`
	Data    *MasterData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// LoadMasterData fetches master-performance chart data for one analysis type.
// Types outside the known set are rejected locally, before any request.
func (c *Client) LoadMasterData(analysisType string) (*MasterData, error) {
	path, ok := analysisEndpoints[analysisType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownAnalysisType, analysisType)
	}
	var env masterDataEnvelope
	if err := c.doJSON(fasthttp.MethodGet, path, nil, c.pollTimeout, &env); err != nil {
		return nil, err
	}
	if !env.Success || env.Data == nil {
		return nil, envelopeErr(env.Error)
	}
	return env.Data, nil
}
