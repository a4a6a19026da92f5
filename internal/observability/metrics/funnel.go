package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Funnel summarises the booking counters for the admin dashboard.
type Funnel struct {
	SessionsCreated int64            `json:"sessions_created"`
	Reached         map[string]int64 `json:"reached"`
	Rejections      map[string]int64 `json:"rejections"`
	Submissions     map[string]int64 `json:"submissions"`
	ConversionPct   float64          `json:"conversion_pct"`
}

// SnapshotFunnel reads the booking counters out of gatherer.
func SnapshotFunnel(gatherer prometheus.Gatherer) Funnel {
	out := Funnel{
		Reached:     map[string]int64{},
		Rejections:  map[string]int64{},
		Submissions: map[string]int64{},
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return out
	}

	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case "rehab_booking_transitions_total":
			sumByLabel(mf, "to", out.Reached)
		case "rehab_booking_rejections_total":
			sumByLabel(mf, "operation", out.Rejections)
		case "rehab_booking_submissions_total":
			sumByLabel(mf, "status", out.Submissions)
		case "rehab_booking_sessions_total":
			created := map[string]int64{}
			sumByLabel(mf, "event", created)
			out.SessionsCreated = created["created"]
		}
	}

	if out.SessionsCreated > 0 {
		out.ConversionPct = float64(out.Submissions["submitted"]) / float64(out.SessionsCreated) * 100.0
	}
	return out
}

func sumByLabel(mf *dto.MetricFamily, label string, into map[string]int64) {
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		value := labelValue(metric, label)
		if value == "" {
			continue
		}
		into[value] += int64(metric.GetCounter().GetValue())
	}
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
