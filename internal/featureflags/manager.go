// Package featureflags evaluates runtime toggles from the FEATURE_FLAGS setting.
package featureflags

import (
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Known flags.
const (
	// ReferralRealtimeEvents publishes referral updates to members' websocket streams.
	ReferralRealtimeEvents = "referral_realtime_events"
	// ReminderCron runs the in-process reminder scheduler.
	ReminderCron = "reminder_cron"
)

// rule is a parsed flag value. percent is 0..100; on/off map to 100 and 0.
type rule struct {
	raw     string
	percent int
}

func parseRule(value string) (rule, bool) {
	switch value {
	case "on", "true", "1":
		return rule{raw: value, percent: 100}, true
	case "off", "false", "0":
		return rule{raw: value, percent: 0}, true
	}
	digits, ok := strings.CutSuffix(value, "%")
	if !ok {
		return rule{}, false
	}
	pct, err := strconv.Atoi(digits)
	if err != nil {
		return rule{}, false
	}
	return rule{raw: value, percent: min(max(pct, 0), 100)}, true
}

// Manager evaluates flags from a comma-separated key=value list, for example
// "referral_realtime_events=on,reminder_cron=off,member_search=25%".
// Unparseable entries are ignored and read as off.
type Manager struct {
	rules map[string]rule
}

// NewManager parses the FEATURE_FLAGS value.
func NewManager(raw string) *Manager {
	rules := make(map[string]rule)
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key, value = normalize(key), normalize(value)
		if key == "" {
			continue
		}
		if r, ok := parseRule(value); ok {
			rules[key] = r
		}
	}
	return &Manager{rules: rules}
}

// Enabled reports whether name is on for subject. Partial rollouts bucket the
// subject deterministically, so a member sees the same answer on every call.
func (m *Manager) Enabled(name string, subject uuid.UUID) bool {
	if m == nil {
		return false
	}
	r, ok := m.rules[normalize(name)]
	switch {
	case !ok || r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case subject == uuid.Nil:
		return false
	}
	return rolloutBucket(name, subject) < r.percent
}

// Global reports whether a flag is on for everyone. Partial rollouts are not.
func (m *Manager) Global(name string) bool {
	return m.Enabled(name, uuid.Nil)
}

// Raw returns the configured values as written, normalized to lower case.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for k, r := range m.rules {
		out[k] = r.raw
	}
	return out
}

// Snapshot evaluates every configured flag for subject.
func (m *Manager) Snapshot(subject uuid.UUID) map[string]bool {
	out := map[string]bool{}
	if m == nil {
		return out
	}
	for name := range m.rules {
		out[name] = m.Enabled(name, subject)
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func rolloutBucket(name string, subject uuid.UUID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(normalize(name)))
	_, _ = h.Write(subject[:])
	return int(h.Sum32() % 100)
}
