package training

import (
	"fmt"
	"os"

	"github.com/wcharczuk/go-chart"
)

// RenderCurves writes a PNG line chart of one metric's train and test series
// across epochs. I/O and rendering errors are surfaced to the caller.
func RenderCurves(h *History, metric, path string) error {
	train := h.Metric(SplitTrain, metric)
	test := h.Metric(SplitTest, metric)
	if len(train) == 0 && len(test) == 0 {
		return fmt.Errorf("no recorded values for metric %q", metric)
	}

	graph := chart.Chart{
		XAxis: chart.XAxis{Name: "epoch"},
		YAxis: chart.YAxis{Name: metric},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    SplitTrain,
				XValues: epochAxis(len(train)),
				YValues: train,
			},
			chart.ContinuousSeries{
				Name:    SplitTest,
				XValues: epochAxis(len(test)),
				YValues: test,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %v", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render %s curves: %v", metric, err)
	}
	return nil
}

func epochAxis(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	return xs
}
