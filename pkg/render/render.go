// Package render turns an event and its roster into the text of the board
// post. It has no gateway or store dependency.
package render

import (
	"fmt"
	"strings"
	"time"

	"opboard/internal/domain/entities"
	"opboard/pkg/eventtime"
)

const (
	headerRule  = "═══════════════════════════════════════"
	sectionRule = "───────────────────────────────────────"
	emptySlot   = "  —"
)

// DefaultTimeLayout renders as "Sunday, March 01, 2026 14:00".
const DefaultTimeLayout = "Monday, January 02, 2006 15:04"

// Label keys looked up through Options.Text. Count and Name are the only
// template fields.
const (
	LabelTime         = "post.time"
	LabelCreatedBy    = "post.created_by"
	LabelStarted      = "post.started"
	LabelStartingSoon = "post.starting_soon"
	LabelInDays       = "post.in_days"
	LabelInOneDay     = "post.in_one_day"
	LabelInHours      = "post.in_hours"
	LabelInOneHour    = "post.in_one_hour"
	LabelInMinutes    = "post.in_minutes"
)

// Text resolves a label key. A nil Text renders English.
type Text func(key string, data map[string]any) string

func (t Text) get(key string, data map[string]any) string {
	if t != nil {
		return t(key, data)
	}
	return english(key, data)
}

func english(key string, data map[string]any) string {
	switch key {
	case LabelTime:
		return "Time"
	case LabelCreatedBy:
		return fmt.Sprintf("Created by %v", data["Name"])
	case LabelStarted:
		return "started"
	case LabelStartingSoon:
		return "starting soon"
	case LabelInDays:
		return fmt.Sprintf("in %v days", data["Count"])
	case LabelInOneDay:
		return "in 1 day"
	case LabelInHours:
		return fmt.Sprintf("in %v hours", data["Count"])
	case LabelInOneHour:
		return "in 1 hour"
	case LabelInMinutes:
		return fmt.Sprintf("in %v minutes", data["Count"])
	}
	return key
}

// Options controls presentation only.
type Options struct {
	CreatorDisplayName string
	Location           *time.Location
	TimeLayout         string
	Now                time.Time
	Text               Text
}

// Post renders the full board post. Signups are listed in the order given,
// grouped under their role in configuration order, declined last.
func Post(event *entities.Event, signups []entities.Signup, roles *entities.RoleConfig, opts Options) string {
	layout := opts.TimeLayout
	if layout == "" {
		layout = DefaultTimeLayout
	}

	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(headerRule)
	line("📋 " + event.Title)
	line("")
	if event.Description != "" {
		line(event.Description)
		line("")
	}
	if !event.EventTime.IsZero() {
		line("⏰ " + opts.Text.get(LabelTime, nil))
		line(eventtime.Format(event.EventTime, opts.Location, layout))
		line("⏳ " + Countdown(event.EventTime, opts.Now, opts.Text))
	}
	line("")
	line(sectionRule)

	byRole := make(map[string][]entities.Signup)
	for _, s := range signups {
		byRole[s.RoleKey] = append(byRole[s.RoleKey], s)
	}
	section := func(def entities.RoleDefinition) {
		members := byRole[def.Key]
		if len(members) == 0 {
			line(fmt.Sprintf("%s %s", def.Glyph, def.Label))
			line(emptySlot)
		} else {
			line(fmt.Sprintf("%s %s (%d)", def.Glyph, def.Label, len(members)))
			for _, s := range members {
				line("  " + s.DisplayName)
			}
		}
		line("")
	}
	for _, def := range roles.Roles {
		section(def)
	}
	section(roles.Declined)

	if opts.CreatorDisplayName != "" {
		line(opts.Text.get(LabelCreatedBy, map[string]any{"Name": opts.CreatorDisplayName}))
	}
	b.WriteString(headerRule)
	return b.String()
}

// Countdown describes how far eventTime is from now.
func Countdown(eventTime, now time.Time, text Text) string {
	if !eventTime.After(now) {
		return text.get(LabelStarted, nil)
	}
	delta := eventTime.Sub(now)
	days := int(delta / (24 * time.Hour))
	hours := int(delta / time.Hour)
	minutes := int(delta / time.Minute)
	switch {
	case days > 1:
		return text.get(LabelInDays, map[string]any{"Count": days})
	case days == 1:
		return text.get(LabelInOneDay, nil)
	case hours > 1:
		return text.get(LabelInHours, map[string]any{"Count": hours})
	case hours == 1:
		return text.get(LabelInOneHour, nil)
	case minutes > 1:
		return text.get(LabelInMinutes, map[string]any{"Count": minutes})
	default:
		return text.get(LabelStartingSoon, nil)
	}
}
