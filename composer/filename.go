package composer

import (
	"fmt"
	"strings"
	"time"
)

// uniqueName stamps name with the unix millisecond time before its extension,
// photo.png becoming photo_1700000000000.png. The stamp is bumped until the
// result differs from prev.
func uniqueName(name, prev string, now time.Time) string {
	base, ext := name, ""
	if i := strings.LastIndex(name, "."); i >= 0 {
		base, ext = name[:i], name[i:]
	}

	ts := now.UnixMilli()
	for {
		out := fmt.Sprintf("%s_%d%s", base, ts, ext)
		if out != prev {
			return out
		}
		ts++
	}
}
