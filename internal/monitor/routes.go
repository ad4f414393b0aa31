// Package monitor serves debug views of a running stream on the tsweb debug
// page.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/accmouse/internal/monitoring"
	"github.com/banshee-data/accmouse/internal/pipeline"
)

// SnapshotSource is implemented by pipeline.Stream.
type SnapshotSource interface {
	Snapshot() pipeline.Snapshot
}

// AttachRoutes registers the motion debug routes under /debug/.
func AttachRoutes(mux *http.ServeMux, src SnapshotSource) {
	debug := tsweb.Debugger(mux)

	debug.KVFunc("Motion state", func() any {
		if src.Snapshot().State.IsStationary {
			return "stationary"
		}
		return "moving"
	})

	debug.Handle("motion-state", "classifier state and stream counters (JSON)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := src.Snapshot()
		if r.URL.Query().Get("history") != "1" {
			snap.History = nil
		}
		writeJSON(w, http.StatusOK, snap)
	}))

	debug.Handle("motion-chart", "recent velocity and cursor deltas", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := src.Snapshot()
		if n, err := strconv.Atoi(r.URL.Query().Get("points")); err == nil && n > 0 && n < len(snap.History) {
			snap.History = snap.History[len(snap.History)-n:]
		}

		var buf bytes.Buffer
		if err := renderChart(&buf, snap); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("render error: %v", err)})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	}))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("monitor: JSON encoding error: %v", err)
	}
}

// renderChart draws the velocity history and the resulting cursor deltas as
// two stacked line charts.
func renderChart(buf *bytes.Buffer, snap pipeline.Snapshot) error {
	n := len(snap.History)
	xs := make([]string, n)
	vx := make([]opts.LineData, n)
	vy := make([]opts.LineData, n)
	dx := make([]opts.LineData, n)
	dy := make([]opts.LineData, n)
	moving := make([]opts.LineData, n)
	for i, p := range snap.History {
		xs[i] = strconv.FormatFloat(p.Time, 'f', 2, 64)
		vx[i] = opts.LineData{Value: p.Velocity.X}
		vy[i] = opts.LineData{Value: p.Velocity.Y}
		dx[i] = opts.LineData{Value: p.DX}
		dy[i] = opts.LineData{Value: p.DY}
		m := 0
		if !p.Stationary {
			m = 1
		}
		moving[i] = opts.LineData{Value: m}
	}

	subtitle := fmt.Sprintf("stream=%s frames=%d dropped=%d moves=%d transitions=%d",
		snap.ID, snap.Counters.FramesAccepted, snap.Counters.FramesDropped, snap.Counters.Moves, snap.State.Transitions)

	lineOpts := charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})

	velocity := charts.NewLine()
	velocity.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "accmouse motion", Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Velocity", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "v (g·s)"}),
	)
	velocity.SetXAxis(xs).
		AddSeries("vx", vx, lineOpts).
		AddSeries("vy", vy, lineOpts)

	deltas := charts.NewLine()
	deltas.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cursor delta per sample"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "px"}),
	)
	deltas.SetXAxis(xs).
		AddSeries("dx", dx, lineOpts).
		AddSeries("dy", dy, lineOpts).
		AddSeries("moving", moving, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), Step: "end"}))

	page := components.NewPage()
	page.PageTitle = "accmouse motion"
	page.AddCharts(velocity, deltas)
	return page.Render(buf)
}
