package core

import (
	"context"
	"math"

	"mescore/pkg/domain"
)

// Control rule identifiers, in evaluation priority order.
const (
	SPCRuleBeyond3Sigma     = "single_point_beyond_3_sigma"
	SPCRuleTwoOfThree2Sigma = "two_of_three_beyond_2_sigma"
	SPCRuleEightSameSide    = "eight_consecutive_same_side"
)

// SPCControlResult classifies one candidate value against current limits.
type SPCControlResult struct {
	InControl    bool   `json:"in_control"`
	ViolatedRule string `json:"violated_rule,omitempty"`
}

// ControlChartData is the read-side view of a series: recent points plus the
// limits in force.
type ControlChartData struct {
	Parameter string               `json:"parameter"`
	Points    []domain.Measurement `json:"points"`
	Center    float64              `json:"center"`
	Sigma     float64              `json:"sigma"`
	UCL       float64              `json:"ucl"`
	LCL       float64              `json:"lcl"`
}

// RecordSPCMeasurement appends a measurement to the parameter's series,
// creating the series on first use, and recomputes the control limits from
// the rolling window. Limits apply forward only; earlier points are never
// re-evaluated.
func (s *Service) RecordSPCMeasurement(ctx context.Context, parameter string, value float64, machineID string) (domain.Measurement, domain.SPCSeries, error) {
	if parameter == "" {
		return domain.Measurement{}, domain.SPCSeries{}, domain.ValidationError{Field: "parameter", Reason: "parameter is required"}
	}
	measurement := domain.Measurement{Timestamp: s.nowFn(), Value: value, MachineID: machineID}

	var series domain.SPCSeries
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		existing, ok := findSeries(tx.Snapshot(), parameter)
		if !ok {
			created, err := tx.CreateSPCSeries(domain.SPCSeries{
				Parameter:  parameter,
				WindowSize: s.spcWindow,
			})
			if err != nil {
				return err
			}
			existing = created
		}
		var err error
		series, err = tx.UpdateSPCSeries(existing.ID, func(sp *domain.SPCSeries) error {
			sp.Points = append(sp.Points, measurement)
			recomputeLimits(sp)
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Measurement{}, domain.SPCSeries{}, err
	}
	s.metrics.RecordSPCMeasurement(parameter)
	return measurement, series, nil
}

// CheckSPCControl evaluates a candidate value against the series' current
// limits without recording it. Rules are checked in priority order and the
// first match wins. A series without valid limits is always in control.
func (s *Service) CheckSPCControl(ctx context.Context, parameter string, value float64) (SPCControlResult, error) {
	var series domain.SPCSeries
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		found, ok := findSeries(view, parameter)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntitySPCSeries, ID: parameter}
		}
		series = found
		return nil
	})
	if err != nil {
		return SPCControlResult{}, err
	}

	result := classify(series, value)
	if !result.InControl {
		s.metrics.RecordSPCOutOfControl(parameter, result.ViolatedRule)
		s.log.WithParameter(parameter).WithField("rule", result.ViolatedRule).Warn("spc out of control")
	}
	return result, nil
}

// ControlChart returns the most recent limit points of a series plus the
// limits in force. A limit of zero returns the full window.
func (s *Service) ControlChart(ctx context.Context, parameter string, limit int) (ControlChartData, error) {
	if limit < 0 {
		return ControlChartData{}, domain.ValidationError{Field: "limit", Reason: "limit must not be negative"}
	}
	var chart ControlChartData
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		series, ok := findSeries(view, parameter)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntitySPCSeries, ID: parameter}
		}
		points := series.Points
		if limit > 0 && len(points) > limit {
			points = points[len(points)-limit:]
		}
		chart = ControlChartData{
			Parameter: series.Parameter,
			Points:    append([]domain.Measurement(nil), points...),
			Center:    series.Center,
			Sigma:     series.Sigma,
			UCL:       series.UCL,
			LCL:       series.LCL,
		}
		return nil
	})
	return chart, err
}

func findSeries(view domain.TransactionView, parameter string) (domain.SPCSeries, bool) {
	for _, series := range view.ListSPCSeries() {
		if series.Parameter == parameter {
			return series, true
		}
	}
	return domain.SPCSeries{}, false
}

// recomputeLimits derives the Shewhart center line and three-sigma limits
// from the rolling window. At least two points are needed for a meaningful
// standard deviation.
func recomputeLimits(series *domain.SPCSeries) {
	window := series.Window()
	if len(window) < 2 {
		series.LimitsValid = false
		return
	}
	sum := 0.0
	for _, m := range window {
		sum += m.Value
	}
	mean := sum / float64(len(window))

	ss := 0.0
	for _, m := range window {
		d := m.Value - mean
		ss += d * d
	}
	sigma := math.Sqrt(ss / float64(len(window)-1))

	series.Center = mean
	series.Sigma = sigma
	series.UCL = mean + 3*sigma
	series.LCL = mean - 3*sigma
	series.LimitsValid = true
}

// classify applies the out-of-control rules in priority order against the
// candidate value plus the recorded history.
func classify(series domain.SPCSeries, value float64) SPCControlResult {
	if !series.LimitsValid {
		return SPCControlResult{InControl: true}
	}

	if value > series.UCL || value < series.LCL {
		return SPCControlResult{ViolatedRule: SPCRuleBeyond3Sigma}
	}

	if series.Sigma > 0 && twoOfThreeBeyondTwoSigma(series, value) {
		return SPCControlResult{ViolatedRule: SPCRuleTwoOfThree2Sigma}
	}

	if eightConsecutiveSameSide(series, value) {
		return SPCControlResult{ViolatedRule: SPCRuleEightSameSide}
	}

	return SPCControlResult{InControl: true}
}

func twoOfThreeBeyondTwoSigma(series domain.SPCSeries, value float64) bool {
	recent := lastValues(series, 2)
	window := append(recent, value)
	if len(window) < 3 {
		return false
	}
	above, below := 0, 0
	for _, v := range window {
		switch {
		case v > series.Center+2*series.Sigma:
			above++
		case v < series.Center-2*series.Sigma:
			below++
		}
	}
	return above >= 2 || below >= 2
}

func eightConsecutiveSameSide(series domain.SPCSeries, value float64) bool {
	recent := lastValues(series, 7)
	window := append(recent, value)
	if len(window) < 8 {
		return false
	}
	allAbove, allBelow := true, true
	for _, v := range window {
		if v <= series.Center {
			allAbove = false
		}
		if v >= series.Center {
			allBelow = false
		}
	}
	return allAbove || allBelow
}

func lastValues(series domain.SPCSeries, n int) []float64 {
	points := series.Points
	if len(points) > n {
		points = points[len(points)-n:]
	}
	values := make([]float64, 0, len(points))
	for _, m := range points {
		values = append(values, m.Value)
	}
	return values
}
