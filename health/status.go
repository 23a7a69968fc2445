package health

import (
	"regexp"
	"time"
)

// Level orders statuses from best to worst so aggregation can take the maximum
type Level int

const (
	LevelHealthy Level = iota
	LevelDegraded
	LevelUnhealthy
)

var levelNames = [...]string{"healthy", "degraded", "unhealthy"}

func (l Level) String() string {
	if l < LevelHealthy || l > LevelUnhealthy {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel maps a status string back to its level. Unknown strings are
// treated as unhealthy.
func ParseLevel(s string) Level {
	for i, name := range levelNames {
		if name == s {
			return Level(i)
		}
	}
	return LevelUnhealthy
}

// Status represents the health state of a channel or the whole system
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
	Details     *Details  `json:"details,omitempty"`
}

// Details carries channel-specific health data
type Details struct {
	State      string    `json:"state"`
	Attempts   int       `json:"attempts"`
	Exhausted  bool      `json:"exhausted,omitempty"`
	LastChange time.Time `json:"last_change,omitempty"`
}

// ChannelInfo is the subset of a channel snapshot the health mapping needs
type ChannelInfo struct {
	State      string
	Attempts   int
	LastError  string
	Exhausted  bool
	LastChange time.Time
}

// New builds a status at the given level, stamped with the current time
func New(level Level, component, message string) Status {
	return Status{
		Component: component,
		Healthy:   level == LevelHealthy,
		Status:    level.String(),
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewHealthy(component, message string) Status {
	return New(LevelHealthy, component, message)
}

func NewDegraded(component, message string) Status {
	return New(LevelDegraded, component, message)
}

func NewUnhealthy(component, message string) Status {
	return New(LevelUnhealthy, component, message)
}

// Level reports the status level parsed from the Status string
func (s Status) Level() Level { return ParseLevel(s.Status) }

func (s Status) IsHealthy() bool   { return s.Level() == LevelHealthy }
func (s Status) IsDegraded() bool  { return s.Level() == LevelDegraded }
func (s Status) IsUnhealthy() bool { return s.Level() == LevelUnhealthy }

// WithDetails returns a copy of the status with details attached
func (s Status) WithDetails(details *Details) Status {
	s.Details = details
	return s
}

// WithSubStatus returns a copy with sub appended. The copy never shares a
// backing array with the receiver.
func (s Status) WithSubStatus(sub Status) Status {
	subs := make([]Status, 0, len(s.SubStatuses)+1)
	subs = append(subs, s.SubStatuses...)
	s.SubStatuses = append(subs, sub)
	return s
}

// Aggregate rolls children into one status for component. The result takes
// the worst child level; no children is healthy.
func Aggregate(component string, children []Status) Status {
	if len(children) == 0 {
		return NewHealthy(component, "No channels created")
	}

	worst := LevelHealthy
	for _, child := range children {
		worst = max(worst, child.Level())
	}

	var msg string
	switch worst {
	case LevelUnhealthy:
		msg = "One or more channels are unhealthy"
	case LevelDegraded:
		msg = "One or more channels are degraded"
	default:
		msg = "All channels are healthy"
	}

	out := New(worst, component, msg)
	out.SubStatuses = append([]Status(nil), children...)
	return out
}

// scrubbers run in order; URLs go first because they contain paths and ports.
var scrubbers = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(?:https?|nats|wss?)://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`), "[PATH]"},
	{regexp.MustCompile(`[A-Z]:\\[^:\s]+`), "[PATH]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP]"},
	{regexp.MustCompile(`:\d{2,5}\b`), "[PORT]"},
	{regexp.MustCompile(`(?i)(password|token|key|secret|credential|bearer)[^a-zA-Z]*[:= ][^,\s}]+`), "[REDACTED]"},
}

// sanitizeErrorMessage masks URLs, file paths, addresses, ports and
// credentials so error text can be served on a health endpoint.
func sanitizeErrorMessage(msg string) string {
	for _, s := range scrubbers {
		msg = s.re.ReplaceAllString(msg, s.with)
	}
	return msg
}

// FromChannel maps a channel snapshot to a health status.
//
//   - connected → healthy
//   - connecting, reconnecting → degraded
//   - disconnected after exhausting retries → unhealthy
//   - disconnected with an error → degraded
//   - disconnected without an error (idle or manual) → healthy
func FromChannel(name string, info ChannelInfo) Status {
	var (
		level = LevelHealthy
		msg   = "Channel idle"
	)
	switch {
	case info.State == "connected":
		msg = "Channel connected"
	case info.State == "connecting" || info.State == "reconnecting":
		level, msg = LevelDegraded, "Channel connecting"
		if info.LastError != "" {
			msg = sanitizeErrorMessage(info.LastError)
		}
	case info.Exhausted:
		level, msg = LevelUnhealthy, sanitizeErrorMessage(info.LastError)
	case info.LastError != "":
		level, msg = LevelDegraded, sanitizeErrorMessage(info.LastError)
	}

	return New(level, name, msg).WithDetails(&Details{
		State:      info.State,
		Attempts:   info.Attempts,
		Exhausted:  info.Exhausted,
		LastChange: info.LastChange,
	})
}
