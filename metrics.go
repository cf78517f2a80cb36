package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/cs-au-dk/goat-flow/analysis/dataflow"
)

// printMetrics prints the counters and histograms gathered during the
// analysis, one sample per line.
func printMetrics(w io.Writer, m *dataflow.Metrics) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}

	fmt.Fprintln(w, "================ Metrics =====================")
	for _, mf := range families {
		lines := make([]string, 0, len(mf.GetMetric()))
		for _, metric := range mf.GetMetric() {
			labels := make([]string, 0, len(metric.GetLabel()))
			for _, l := range metric.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}

			var value string
			switch {
			case metric.GetCounter() != nil:
				value = fmt.Sprintf("%g", metric.GetCounter().GetValue())
			case metric.GetHistogram() != nil:
				h := metric.GetHistogram()
				value = fmt.Sprintf("%d samples, %.4fs total", h.GetSampleCount(), h.GetSampleSum())
			default:
				continue
			}

			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			lines = append(lines, name+" "+value)
		}
		sort.Strings(lines)
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
