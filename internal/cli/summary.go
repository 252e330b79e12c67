package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"map_shortcuts/pkg/pipeline"
)

// summaryLines renders one line per step plus a header and a totals row.
func summaryLines(steps []pipeline.StepRecord) []string {
	const row = "%-8s %4s %12s %12s %10s %10s %12s %10s"
	lines := []string{fmt.Sprintf(row, "phase", "res", "active", "generated", "inserted", "improved", "store", "took")}

	var active, generated, inserted, improved int
	var took time.Duration
	for _, s := range steps {
		lines = append(lines, fmt.Sprintf(row,
			s.Phase, fmt.Sprint(s.Resolution),
			humanize.Comma(int64(s.Active)), humanize.Comma(int64(s.Generated)),
			humanize.Comma(int64(s.Merge.Inserted)), humanize.Comma(int64(s.Merge.Improved)),
			humanize.Comma(int64(s.StoreSize)), s.Duration.Round(time.Millisecond)))
		active += s.Active
		generated += s.Generated
		inserted += s.Merge.Inserted
		improved += s.Merge.Improved
		took += s.Duration
	}
	store := ""
	if len(steps) > 0 {
		store = humanize.Comma(int64(steps[len(steps)-1].StoreSize))
	}
	lines = append(lines, fmt.Sprintf(row, "total", "",
		humanize.Comma(int64(active)), humanize.Comma(int64(generated)),
		humanize.Comma(int64(inserted)), humanize.Comma(int64(improved)),
		store, took.Round(time.Millisecond)))
	return lines
}
