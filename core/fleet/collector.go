package fleet

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/ambudispatch/core/model"
)

var fleetUnitsDesc = prometheus.NewDesc(
	"fleet_units",
	"Number of units per status",
	[]string{"status"}, nil,
)

// Collector exports the registry status counts on every scrape.
type Collector struct {
	reg *Registry
}

// NewCollector returns a prometheus.Collector bound to reg.
func NewCollector(reg *Registry) *Collector { return &Collector{reg: reg} }

func (c *Collector) Describe(ch chan<- *prometheus.Desc) { ch <- fleetUnitsDesc }

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counts := c.reg.Counts()
	for _, st := range []model.Status{model.StatusAvailable, model.StatusDispatched, model.StatusUnavailable} {
		ch <- prometheus.MustNewConstMetric(fleetUnitsDesc, prometheus.GaugeValue, float64(counts[st]), st.String())
	}
}
