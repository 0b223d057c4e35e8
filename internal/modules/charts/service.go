// Package charts renders run series as PNG line charts.
package charts

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vicanso/go-charts/v2"

	"github.com/aristath/dca-lab/internal/domain"
)

const (
	chartWidth  = 1000
	chartHeight = 500
)

// Service renders equity and drawdown charts from stored equity curves
type Service struct {
	log zerolog.Logger
}

// NewService creates a new charts service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "charts").Logger(),
	}
}

// EquityChart renders the portfolio value over time as a PNG
func (s *Service) EquityChart(title string, curve []domain.EquityPoint) ([]byte, error) {
	if len(curve) < 2 {
		return nil, fmt.Errorf("equity chart needs at least 2 points, got %d", len(curve))
	}

	values := make([]float64, len(curve))
	for i, p := range curve {
		values[i] = p.Value
	}
	return s.render(title+" | portfolio value", dateLabels(curve), values)
}

// DrawdownChart renders the running decline from the high-water mark,
// in percent (0 at every new peak, negative below it)
func (s *Service) DrawdownChart(title string, curve []domain.EquityPoint) ([]byte, error) {
	if len(curve) < 2 {
		return nil, fmt.Errorf("drawdown chart needs at least 2 points, got %d", len(curve))
	}

	values := make([]float64, len(curve))
	peak := curve[0].Value
	for i, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak > 0 {
			values[i] = (p.Value/peak - 1.0) * 100.0
		}
	}
	return s.render(title+" | drawdown %", dateLabels(curve), values)
}

func (s *Service) render(title string, labels []string, values []float64) ([]byte, error) {
	yMin, yMax := values[0], values[0]
	for _, v := range values {
		if v < yMin {
			yMin = v
		}
		if v > yMax {
			yMax = v
		}
	}
	pad := (yMax - yMin) * 0.05
	if pad == 0 {
		pad = 1
	}
	yMin -= pad
	yMax += pad

	splitNum := 8
	if len(labels) < 24 {
		splitNum = 4
	}

	p, err := charts.LineRender(
		[][]float64{values},
		charts.TitleTextOptionFunc(title),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	s.log.Debug().Str("title", title).Int("points", len(values)).Msg("chart rendered")
	return buf, nil
}

func dateLabels(curve []domain.EquityPoint) []string {
	labels := make([]string, len(curve))
	for i, p := range curve {
		labels[i] = p.Date.Format("2006-01-02")
	}
	return labels
}
