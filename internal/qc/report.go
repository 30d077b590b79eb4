package qc

import (
	"fmt"
	"math"
)

// DefaultOutlierThreshold is the |z| score beyond which a subject's value is
// flagged. Matches the convention used by the visual QC checklists.
const DefaultOutlierThreshold = 2.0

// Outlier is one flagged subject value.
type Outlier struct {
	Subject string  `json:"subject"`
	Series  string  `json:"series"`
	Value   float64 `json:"value"`
	Z       float64 `json:"z"`
}

// Summary aggregates one metric across all subjects.
type Summary struct {
	Metric   string    `json:"metric"`
	N        int       `json:"n"`
	Mean     float64   `json:"mean"`
	Stddev   float64   `json:"stddev"`
	Outliers []Outlier `json:"outliers,omitempty"`
}

// BuildReport summarizes every metric in the store. Values more than
// threshold standard deviations from the metric mean are flagged as
// outliers. A non-positive threshold selects DefaultOutlierThreshold.
func BuildReport(store *Store, threshold float64) ([]Summary, error) {
	if threshold <= 0 {
		threshold = DefaultOutlierThreshold
	}

	metrics, err := store.Metrics()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(metrics))
	for _, metric := range metrics {
		values, err := store.Values(metric)
		if err != nil {
			return nil, err
		}

		summary, err := summarize(metric, values, threshold)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// summarize computes mean, population stddev, and outliers for one metric.
func summarize(metric string, values []SubjectValue, threshold float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, fmt.Errorf("metric %s has no values", metric)
	}

	var sum float64
	for _, v := range values {
		sum += v.Value
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v.Value - mean
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(values)))

	summary := Summary{
		Metric: metric,
		N:      len(values),
		Mean:   mean,
		Stddev: stddev,
	}

	// With zero spread there is nothing to flag
	if stddev == 0 {
		return summary, nil
	}

	for _, v := range values {
		z := (v.Value - mean) / stddev
		if math.Abs(z) >= threshold {
			summary.Outliers = append(summary.Outliers, Outlier{
				Subject: v.Subject,
				Series:  v.Series,
				Value:   v.Value,
				Z:       z,
			})
		}
	}

	return summary, nil
}
