package usage

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// WriteSummary writes the human readable summary of s to w.
func WriteSummary(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w, `
Summary:
  Policy elapsed:     %.2f%%
  Bandwidth consumed: %.2f%% (%s%s/%s%s)
`,
		s.PercentElapsed,
		s.PercentUsed,
		whole(s.Used), s.Units,
		whole(s.Total), s.Units,
	)
	return err
}

// whole formats f truncated toward zero, with no fraction.
func whole(f float64) string {
	t := math.Trunc(f)
	if t == 0 {
		t = 0 // no "-0"
	}
	return strconv.FormatFloat(t, 'f', 0, 64)
}

type jsonSummary struct {
	Used           float64   `json:"used"`
	Total          float64   `json:"total"`
	Units          string    `json:"units"`
	CycleStart     time.Time `json:"cycle_start"`
	CycleEnd       time.Time `json:"cycle_end"`
	CapturedAt     time.Time `json:"captured_at"`
	PercentElapsed float64   `json:"percent_elapsed"`
	PercentUsed    float64   `json:"percent_used"`
}

// WriteJSON writes s to w as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	return e.Encode(jsonSummary{
		Used:           s.Used,
		Total:          s.Total,
		Units:          s.Units,
		CycleStart:     s.CycleStart,
		CycleEnd:       s.CycleEnd,
		CapturedAt:     s.CapturedAt,
		PercentElapsed: s.PercentElapsed,
		PercentUsed:    s.PercentUsed,
	})
}
