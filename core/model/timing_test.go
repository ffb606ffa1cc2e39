package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimingSummarize(t *testing.T) {
	tm := Timing{OracleCallMs: map[string]float64{"A": 10, "B": 30, "C": 20}}
	tm.Summarize()
	assert.InDelta(t, 20.0, tm.OracleMeanMs, 1e-9)
	assert.Equal(t, 30.0, tm.OracleMaxMs)

	empty := Timing{OracleMeanMs: 4, OracleMaxMs: 5}
	empty.Summarize()
	assert.Zero(t, empty.OracleMeanMs)
	assert.Zero(t, empty.OracleMaxMs)
}
