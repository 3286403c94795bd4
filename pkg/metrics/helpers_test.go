package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

// fetchCounterValue returns the counter in family name whose labels include
// every pair in want.
func fetchCounterValue(mfs []*dto.MetricFamily, name string, want ...string) (float64, error) {
	m, err := findSeries(mfs, name, want...)
	if err != nil {
		return 0, err
	}
	return m.GetCounter().GetValue(), nil
}

func findSeries(mfs []*dto.MetricFamily, name string, want ...string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
	for _, m := range mf.GetMetric() {
		if hasLabels(m.GetLabel(), want) {
			return m, nil
		}
	}
	return nil, fmt.Errorf("metric %q has no series %v", name, want)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabels(labels []*dto.LabelPair, want []string) bool {
	got := map[string]string{}
	for _, l := range labels {
		got[l.GetName()] = l.GetValue()
	}
	for i := 0; i+1 < len(want); i += 2 {
		if got[want[i]] != want[i+1] {
			return false
		}
	}
	return true
}
