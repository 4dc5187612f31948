package core

import (
	"context"
	"errors"
	"math"
	"testing"

	"mescore/internal/infra/persistence/memory"
	"mescore/pkg/domain"
)

// feedAlternating records count points alternating center+offset and
// center-offset, yielding a stable series with a known sigma.
func feedAlternating(t *testing.T, svc *Service, parameter string, center, offset float64, count int) domain.SPCSeries {
	t.Helper()
	var series domain.SPCSeries
	for i := 0; i < count; i++ {
		value := center + offset
		if i%2 == 1 {
			value = center - offset
		}
		var err error
		_, series, err = svc.RecordSPCMeasurement(context.Background(), parameter, value, "m-1")
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	return series
}

func TestRecordComputesShewhartLimits(t *testing.T) {
	svc, _ := newTestService(t)
	series := feedAlternating(t, svc, "diameter", 10, 0.5, 50)

	if !series.LimitsValid {
		t.Fatalf("limits not valid after 50 points")
	}
	if math.Abs(series.Center-10) > 1e-9 {
		t.Fatalf("center: %f", series.Center)
	}
	if series.Sigma <= 0 {
		t.Fatalf("sigma: %f", series.Sigma)
	}
	if math.Abs(series.UCL-(series.Center+3*series.Sigma)) > 1e-9 {
		t.Fatalf("ucl: %f", series.UCL)
	}
	if math.Abs(series.LCL-(series.Center-3*series.Sigma)) > 1e-9 {
		t.Fatalf("lcl: %f", series.LCL)
	}
}

func TestCheckControlSinglePointBeyond3Sigma(t *testing.T) {
	svc, _ := newTestService(t)
	series := feedAlternating(t, svc, "diameter", 10, 0.5, 50)

	result, err := svc.CheckSPCControl(context.Background(), "diameter", series.Center+4*series.Sigma)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.InControl {
		t.Fatalf("4 sigma point classified in control")
	}
	if result.ViolatedRule != SPCRuleBeyond3Sigma {
		t.Fatalf("rule: %s", result.ViolatedRule)
	}
}

func TestCheckControlDoesNotRecord(t *testing.T) {
	svc, store := newTestService(t)
	series := feedAlternating(t, svc, "diameter", 10, 0.5, 10)

	if _, err := svc.CheckSPCControl(context.Background(), "diameter", series.Center+4*series.Sigma); err != nil {
		t.Fatalf("check: %v", err)
	}
	stored := store.ListSPCSeries()
	if len(stored) != 1 || len(stored[0].Points) != 10 {
		t.Fatalf("checkControl must not append points")
	}
}

func TestCheckControlTwoOfThreeBeyond2Sigma(t *testing.T) {
	svc, _ := newTestService(t)
	series := feedAlternating(t, svc, "diameter", 10, 0.5, 50)

	// One recorded point beyond 2 sigma, then a candidate on the same side.
	beyond := series.Center + 2.5*series.Sigma
	if _, _, err := svc.RecordSPCMeasurement(context.Background(), "diameter", beyond, "m-1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	updated, err := svc.ControlChart(context.Background(), "diameter", 0)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	candidate := updated.Center + 2.5*updated.Sigma
	if candidate > updated.UCL {
		t.Fatalf("test setup drifted past 3 sigma")
	}
	result, err := svc.CheckSPCControl(context.Background(), "diameter", candidate)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.InControl || result.ViolatedRule != SPCRuleTwoOfThree2Sigma {
		t.Fatalf("result: %+v", result)
	}
}

func TestCheckControlEightConsecutiveSameSide(t *testing.T) {
	svc, _ := newTestService(t)
	feedAlternating(t, svc, "diameter", 10, 2, 40)

	chart, err := svc.ControlChart(context.Background(), "diameter", 0)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	// Seven recorded points just above center, then a candidate above it.
	small := 0.1 * chart.Sigma
	for i := 0; i < 7; i++ {
		if _, _, err := svc.RecordSPCMeasurement(context.Background(), "diameter", chart.Center+small, "m-1"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	latest, err := svc.ControlChart(context.Background(), "diameter", 0)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	result, err := svc.CheckSPCControl(context.Background(), "diameter", latest.Center+0.01*latest.Sigma)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.InControl || result.ViolatedRule != SPCRuleEightSameSide {
		t.Fatalf("result: %+v", result)
	}
}

func TestCheckControlInsufficientDataIsInControl(t *testing.T) {
	svc, _ := newTestService(t)
	if _, _, err := svc.RecordSPCMeasurement(context.Background(), "diameter", 10, "m-1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	result, err := svc.CheckSPCControl(context.Background(), "diameter", 1000)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !result.InControl {
		t.Fatalf("single-point series must be in control")
	}
}

func TestCheckControlUnknownParameter(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CheckSPCControl(context.Background(), "missing", 1)
	var nfe domain.NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestControlChartLimitsPoints(t *testing.T) {
	svc, _ := newTestService(t)
	feedAlternating(t, svc, "diameter", 10, 0.5, 20)

	chart, err := svc.ControlChart(context.Background(), "diameter", 5)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if len(chart.Points) != 5 {
		t.Fatalf("points: got %d want 5", len(chart.Points))
	}
	if chart.UCL <= chart.Center || chart.LCL >= chart.Center {
		t.Fatalf("limits not around center: %+v", chart)
	}

	if _, err := svc.ControlChart(context.Background(), "diameter", -1); err == nil {
		t.Fatalf("negative limit accepted")
	}
}

func TestRollingWindowDropsOldPointsFromLimits(t *testing.T) {
	store := memory.NewStore(DefaultRulesEngine())
	svc := NewService(store, WithSPCWindow(10))

	// Ten points at 10, then ten at 20: limits should follow the window.
	for i := 0; i < 10; i++ {
		if _, _, err := svc.RecordSPCMeasurement(context.Background(), "width", 10, "m-1"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		if _, _, err := svc.RecordSPCMeasurement(context.Background(), "width", 20, "m-1"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	chart, err := svc.ControlChart(context.Background(), "width", 0)
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	if math.Abs(chart.Center-20) > 1e-9 {
		t.Fatalf("center should reflect only the window: %f", chart.Center)
	}
	if chart.Sigma != 0 {
		t.Fatalf("uniform window sigma: %f", chart.Sigma)
	}
	if len(chart.Points) != 20 {
		t.Fatalf("history must keep all points: %d", len(chart.Points))
	}
}
