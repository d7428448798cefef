// Agreement metrics between binary masks
package metrics

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Metric compares a candidate mask against a reference mask
type Metric interface {
	// Calculate computes the metric value
	Calculate(reference, candidate gocv.Mat) (float64, error)

	// GetName returns the metric name
	GetName() string

	// GetDescription returns the metric description
	GetDescription() string

	// GetRange returns the value range (min, max)
	GetRange() (float64, float64)

	// IsHigherBetter returns true if higher values indicate better agreement
	IsHigherBetter() bool
}

// Evaluator manages and calculates multiple metrics
type Evaluator struct {
	metrics map[string]Metric
}

// NewEvaluator creates a new metrics evaluator
func NewEvaluator() *Evaluator {
	e := &Evaluator{
		metrics: make(map[string]Metric),
	}

	e.RegisterDefaultMetrics()

	return e
}

// RegisterDefaultMetrics registers all default metrics
func (e *Evaluator) RegisterDefaultMetrics() {
	e.Register("iou", NewIoU())
	e.Register("f_measure", NewFMeasure())
	e.Register("precision", NewPrecision())
	e.Register("recall", NewRecall())
	e.Register("pixel_agreement", NewPixelAgreement())
}

// Register registers a metric
func (e *Evaluator) Register(name string, metric Metric) {
	e.metrics[name] = metric
}

// Calculate calculates a specific metric
func (e *Evaluator) Calculate(name string, reference, candidate gocv.Mat) (float64, error) {
	metric, exists := e.metrics[name]
	if !exists {
		return 0, fmt.Errorf("metric not found: %s", name)
	}

	return metric.Calculate(reference, candidate)
}

// CalculateAll calculates all registered metrics. Metrics that fail are left out.
func (e *Evaluator) CalculateAll(reference, candidate gocv.Mat) map[string]float64 {
	results := make(map[string]float64)

	for name, metric := range e.metrics {
		if value, err := metric.Calculate(reference, candidate); err == nil {
			results[name] = value
		}
	}

	return results
}

// GetMetricInfo returns information about all metrics
func (e *Evaluator) GetMetricInfo() map[string]MetricInfo {
	info := make(map[string]MetricInfo)

	for name, metric := range e.metrics {
		min, max := metric.GetRange()
		info[name] = MetricInfo{
			Name:         metric.GetName(),
			Description:  metric.GetDescription(),
			Range:        [2]float64{min, max},
			HigherBetter: metric.IsHigherBetter(),
		}
	}

	return info
}

// MetricInfo provides metadata about a metric
type MetricInfo struct {
	Name         string
	Description  string
	Range        [2]float64 // [min, max]
	HigherBetter bool
}

// Report is a full comparison of two masks
type Report struct {
	Metrics   map[string]float64 `json:"metrics"`
	Confusion Confusion          `json:"confusion"`
	Timestamp string             `json:"timestamp"`
}

// Compare computes every registered metric and the pixel confusion counts
func (e *Evaluator) Compare(reference, candidate gocv.Mat) (Report, error) {
	confusion, err := NewConfusion(reference, candidate)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Metrics:   e.CalculateAll(reference, candidate),
		Confusion: confusion,
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
	}, nil
}
