package reporter

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// formatDuration renders a test's elapsed time for human-facing output:
// Go's compact duration form plus a comma-grouped millisecond count, which
// reads far easier than a bare integer once a run climbs into the seconds.
func formatDuration(ms int64) string {
	return fmt.Sprintf("%s (%s ms)", time.Duration(ms)*time.Millisecond, humanize.Comma(ms))
}
