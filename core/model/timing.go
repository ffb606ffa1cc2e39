package model

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Timing summarizes where a dispatch decision spent its time. All values
// are milliseconds.
type Timing struct {
	GeoRankMs     float64            `json:"geo_rank_ms"`
	OracleBatchMs float64            `json:"oracle_batch_ms"`
	TotalMs       float64            `json:"total_ms"`
	OracleCallMs  map[string]float64 `json:"oracle_call_ms,omitempty"`
	OracleMeanMs  float64            `json:"oracle_mean_ms"`
	OracleMaxMs   float64            `json:"oracle_max_ms"`
}

// Summarize fills the aggregate oracle fields from OracleCallMs.
func (t *Timing) Summarize() {
	if len(t.OracleCallMs) == 0 {
		t.OracleMeanMs, t.OracleMaxMs = 0, 0
		return
	}
	vals := make([]float64, 0, len(t.OracleCallMs))
	for _, v := range t.OracleCallMs {
		vals = append(vals, v)
	}
	t.OracleMeanMs = stat.Mean(vals, nil)
	t.OracleMaxMs = floats.Max(vals)
}
