package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ScheduleMode selects how a forward rule is executed.
type ScheduleMode int

// ScheduleMode wire values.
const (
	// ScheduleModeRealtime forwards posts as they arrive.
	ScheduleModeRealtime ScheduleMode = 0
	// ScheduleModeScheduled posts stored messages in timed batches.
	ScheduleModeScheduled ScheduleMode = 1
)

// Valid reports whether the mode is a known wire value.
func (m ScheduleMode) Valid() bool {
	return m == ScheduleModeRealtime || m == ScheduleModeScheduled
}

// ScheduleStatus tracks a scheduled forward rule's runner state.
type ScheduleStatus int

// ScheduleStatus wire values.
const (
	// ScheduleStatusIdle means the runner has never been started or was reset.
	ScheduleStatusIdle ScheduleStatus = 0
	// ScheduleStatusRunning means batches are being posted.
	ScheduleStatusRunning ScheduleStatus = 1
	// ScheduleStatusPaused means posting is suspended at the current message.
	ScheduleStatusPaused ScheduleStatus = 2
	// ScheduleStatusCompleted means the configured range was exhausted.
	ScheduleStatusCompleted ScheduleStatus = 3
)

// BroadcastStatus tracks a broadcast through its lifecycle.
type BroadcastStatus int

// BroadcastStatus wire values.
const (
	// BroadcastPending means the broadcast is created but not sent.
	BroadcastPending BroadcastStatus = 0
	// BroadcastInProgress means delivery is underway.
	BroadcastInProgress BroadcastStatus = 1
	// BroadcastCompleted means delivery finished.
	BroadcastCompleted BroadcastStatus = 2
	// BroadcastFailed means delivery aborted with an error.
	BroadcastFailed BroadcastStatus = 3
	// BroadcastCancelled means an operator cancelled delivery.
	BroadcastCancelled BroadcastStatus = 4
)

// AutoDropStatus is the auto-drop runner state. Unlike the other status
// enums this concept is a string on the wire.
type AutoDropStatus int

// AutoDropStatus values.
const (
	AutoDropStopped AutoDropStatus = iota
	AutoDropRunning
	AutoDropPaused
	AutoDropCompleted
)

var autoDropLabels = map[AutoDropStatus]string{
	AutoDropStopped:   "stopped",
	AutoDropRunning:   "running",
	AutoDropPaused:    "paused",
	AutoDropCompleted: "completed",
}

// String returns the wire label.
func (s AutoDropStatus) String() string {
	if label, ok := autoDropLabels[s]; ok {
		return label
	}
	return "stopped"
}

// ParseAutoDropStatus maps a wire label back to its status.
func ParseAutoDropStatus(label string) (AutoDropStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for status, name := range autoDropLabels {
		if name == normalized {
			return status, nil
		}
	}
	return AutoDropStopped, fmt.Errorf("models: unknown auto-drop status %q", label)
}

// MarshalJSON writes the status as its wire label.
func (s AutoDropStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads the status from its wire label.
func (s *AutoDropStatus) UnmarshalJSON(data []byte) error {
	var label string
	if errDecode := json.Unmarshal(data, &label); errDecode != nil {
		return errDecode
	}
	parsed, errParse := ParseAutoDropStatus(label)
	if errParse != nil {
		return errParse
	}
	*s = parsed
	return nil
}

// GormDataType stores auto-drop statuses as their wire label.
func (AutoDropStatus) GormDataType() string { return "text" }

// Value implements driver.Valuer so the label is persisted, not the int.
func (s AutoDropStatus) Value() (any, error) { return s.String(), nil }

// Scan implements sql.Scanner for the label representation.
func (s *AutoDropStatus) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = AutoDropStopped
		return nil
	case string:
		parsed, errParse := ParseAutoDropStatus(v)
		if errParse != nil {
			return errParse
		}
		*s = parsed
		return nil
	case []byte:
		parsed, errParse := ParseAutoDropStatus(string(v))
		if errParse != nil {
			return errParse
		}
		*s = parsed
		return nil
	default:
		return fmt.Errorf("models: cannot scan %T into AutoDropStatus", src)
	}
}

// DurationUnit keys token pricing and invite durations.
type DurationUnit int

// DurationUnit wire values.
const (
	DurationMinute DurationUnit = 0
	DurationHour   DurationUnit = 1
	DurationDay    DurationUnit = 2
	DurationMonth  DurationUnit = 3
	DurationYear   DurationUnit = 4
)

// Fixed second multipliers per duration unit.
const (
	SecondsPerMinute int64 = 60
	SecondsPerHour   int64 = 3600
	SecondsPerDay    int64 = 86400
	SecondsPerMonth  int64 = 2592000
	SecondsPerYear   int64 = 31536000
)

// MaxInviteDurationSeconds caps invite durations at two years.
const MaxInviteDurationSeconds int64 = 2 * SecondsPerYear

var durationUnitSeconds = map[DurationUnit]int64{
	DurationMinute: SecondsPerMinute,
	DurationHour:   SecondsPerHour,
	DurationDay:    SecondsPerDay,
	DurationMonth:  SecondsPerMonth,
	DurationYear:   SecondsPerYear,
}

var durationUnitLabels = map[DurationUnit]string{
	DurationMinute: "minute",
	DurationHour:   "hour",
	DurationDay:    "day",
	DurationMonth:  "month",
	DurationYear:   "year",
}

// Valid reports whether the unit is a known wire value.
func (u DurationUnit) Valid() bool {
	_, ok := durationUnitSeconds[u]
	return ok
}

// Seconds returns the fixed multiplier for the unit.
func (u DurationUnit) Seconds() int64 { return durationUnitSeconds[u] }

// String returns the lowercase unit label.
func (u DurationUnit) String() string {
	if label, ok := durationUnitLabels[u]; ok {
		return label
	}
	return "unknown"
}

// ParseDurationUnit accepts the lowercase unit labels used by the invite API.
func ParseDurationUnit(label string) (DurationUnit, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.TrimSuffix(normalized, "s")
	for unit, name := range durationUnitLabels {
		if name == normalized {
			return unit, nil
		}
	}
	return 0, fmt.Errorf("models: unknown duration unit %q", label)
}

// IntervalUnit measures forward-rule post and delete intervals.
type IntervalUnit string

// IntervalUnit wire labels.
const (
	IntervalSeconds IntervalUnit = "seconds"
	IntervalMinutes IntervalUnit = "minutes"
	IntervalHours   IntervalUnit = "hours"
	IntervalDays    IntervalUnit = "days"
	IntervalMonths  IntervalUnit = "months"
	// IntervalNever disables a delete interval entirely.
	IntervalNever IntervalUnit = "never"
)

// Valid reports whether the unit can measure a posting interval.
func (u IntervalUnit) Valid() bool {
	switch u {
	case IntervalSeconds, IntervalMinutes, IntervalHours, IntervalDays, IntervalMonths:
		return true
	}
	return false
}

// ValidForDelete additionally allows "never".
func (u IntervalUnit) ValidForDelete() bool {
	return u == IntervalNever || u.Valid()
}

// Seconds converts an interval value in this unit to seconds. "never" and
// unknown units yield zero.
func (u IntervalUnit) Seconds(value int) int64 {
	if value <= 0 {
		return 0
	}
	v := int64(value)
	switch u {
	case IntervalSeconds:
		return v
	case IntervalMinutes:
		return v * SecondsPerMinute
	case IntervalHours:
		return v * SecondsPerHour
	case IntervalDays:
		return v * SecondsPerDay
	case IntervalMonths:
		return v * SecondsPerMonth
	}
	return 0
}

// DropUnit measures auto-drop intervals.
type DropUnit string

// DropUnit wire labels.
const (
	DropSeconds DropUnit = "seconds"
	DropMinutes DropUnit = "minutes"
	DropHours   DropUnit = "hours"
	DropDays    DropUnit = "days"
)

// Valid reports whether the unit is a known wire label.
func (u DropUnit) Valid() bool {
	switch u {
	case DropSeconds, DropMinutes, DropHours, DropDays:
		return true
	}
	return false
}

// Seconds converts a drop interval to seconds.
func (u DropUnit) Seconds(value int) int64 {
	if value <= 0 {
		return 0
	}
	v := int64(value)
	switch u {
	case DropSeconds:
		return v
	case DropMinutes:
		return v * SecondsPerMinute
	case DropHours:
		return v * SecondsPerHour
	case DropDays:
		return v * SecondsPerDay
	}
	return 0
}

// FeatureType keys automation pricing rows.
type FeatureType int

// FeatureType wire values.
const (
	// FeatureAutoApproval prices auto-approval rules.
	FeatureAutoApproval FeatureType = 0
	// FeatureForwardRule prices forward rules.
	FeatureForwardRule FeatureType = 1
)

// Valid reports whether the feature type is a known wire value.
func (f FeatureType) Valid() bool {
	return f == FeatureAutoApproval || f == FeatureForwardRule
}

// Gateway identifies a payment gateway.
type Gateway string

// Supported payment gateways.
const (
	GatewayCashfree Gateway = "cashfree"
	GatewayPhonePe  Gateway = "phonepe"
)

// Valid reports whether the gateway is supported.
func (g Gateway) Valid() bool {
	return g == GatewayCashfree || g == GatewayPhonePe
}

// PlanInterval is a subscription plan's billing cadence.
type PlanInterval int

// PlanInterval wire values.
const (
	PlanMonthly  PlanInterval = 0
	PlanYearly   PlanInterval = 1
	PlanLifetime PlanInterval = 2
)

// Valid reports whether the interval is a known wire value.
func (i PlanInterval) Valid() bool {
	return i == PlanMonthly || i == PlanYearly || i == PlanLifetime
}
