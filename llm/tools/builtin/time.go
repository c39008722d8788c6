package builtin

import (
	"context"
	"time"

	"github.com/BaSui01/finagent/llm/tools"
)

// ClockLayout is the 12-hour HH:MM AM/PM layout.
const ClockLayout = "03:04 PM"

// TimeConfig configures the Time tool.
type TimeConfig struct {
	// Now defaults to time.Now.
	Now func() time.Time

	// Location defaults to the process local zone.
	Location *time.Location
}

// FormatClock formats t as HH:MM AM/PM.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// NewTimeTool returns the Time tool. The argument is ignored.
func NewTimeTool(cfg TimeConfig) tools.ToolSpec {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return tools.ToolSpec{
		Name:        tools.ToolTime.String(),
		Description: "Useful for when you need to know the current time",
		Timeout:     time.Second,
		Handler: func(context.Context, string) string {
			t := now()
			if cfg.Location != nil {
				t = t.In(cfg.Location)
			}
			return FormatClock(t)
		},
	}
}
