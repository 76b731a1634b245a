package http

import (
	"time"

	xutil "MetalPulse/pkg/util"
)

// ParseDateDefault parses a YYYY-MM-DD (or RFC3339/unix) value or returns def.
func ParseDateDefault(s string, def time.Time) time.Time {
	return xutil.Day(xutil.ParseTimeDefault(s, def))
}
