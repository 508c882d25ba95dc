// Package pingview renders engine views into the display strings used
// by the chat and HTTP surfaces: humanized due times, completion gaps
// and the daily schedule line.
package pingview

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/stefs/evelyn-reminder/internal/discord"
	"github.com/stefs/evelyn-reminder/internal/engine"
	"github.com/stefs/evelyn-reminder/internal/reminder"
	"github.com/stefs/evelyn-reminder/internal/schedule"
)

// Ping is the displayable form of one reminder at one instant.
type Ping struct {
	Key     reminder.Key
	Channel int64
	Color   int

	// Message is the full ping line, key prefix included.
	Message    string
	TTSMessage bool
	TTSCustom  string

	When     string
	Last     string
	Gaps     string
	Schedule string
	// MutedFor is empty unless the reminder is muted.
	MutedFor string

	Due     bool
	Muted   bool
	PingDue bool
}

// Build renders the view at now.
func Build(view *engine.View, now time.Time) (*Ping, error) {
	rem := view.Reminder
	snap := view.Snapshot
	sch, err := schedule.ForReminder(rem)
	if err != nil {
		return nil, err
	}
	loc := sch.Location()

	when := prettyDose(snap.Target, snap.TargetCycle, rem, loc, now, false)
	when = strings.ToUpper(when[:1]) + when[1:]

	message := rem.PingMessage
	if rem.ShowAlternating != "" {
		parts := strings.Split(rem.ShowAlternating, ",")
		index := 0
		if rem.AlternatingFlag {
			index = 1
		}
		if index < len(parts) {
			message = fmt.Sprintf("%s\u2002(%s)", message, parts[index])
		}
	}
	ttsMessage, ttsCustom := resolveTTS(rem, message)
	message = fmt.Sprintf("[%d] %s", rem.Key.Slot, message)

	color, err := parseColor(rem.ColorHex)
	if err != nil {
		return nil, err
	}

	mutedFor := ""
	if snap.Muted {
		mutedFor = fmt.Sprintf("Muted for another %s.",
			naturalDelta(rem.MuteUntil.Sub(now), false, false))
	}

	return &Ping{
		Key:        rem.Key,
		Channel:    rem.Channel,
		Color:      color,
		Message:    message,
		TTSMessage: ttsMessage,
		TTSCustom:  ttsCustom,
		When:       when,
		Last:       prettyDose(snap.Last, snap.LastCycle, rem, loc, now, true),
		Gaps:       gapsLine(view.Tail),
		Schedule:   scheduleLine(sch, now),
		MutedFor:   mutedFor,
		Due:        !now.Before(snap.Target.Timestamp),
		Muted:      snap.Muted,
		PingDue:    snap.PingDue,
	}, nil
}

// Embed renders the ping as a status embed. With includeMessage the
// ping line is stacked above the due time in the title.
func (p *Ping) Embed(includeMessage bool) discord.Embed {
	title := p.When
	if includeMessage {
		title = p.Message + "\n" + p.When
	}
	description := fmt.Sprintf("**Last:** %s\n**Gaps:** %s\n**Schedule:** %s",
		p.Last, p.Gaps, p.Schedule)
	if p.MutedFor != "" {
		description += "\n" + p.MutedFor
	}
	return discord.Embed{
		Title:       title,
		Description: description,
		Color:       p.Color,
	}
}

func resolveTTS(rem *reminder.Reminder, message string) (bool, string) {
	switch rem.TTSMode {
	case reminder.TTSMessage:
		return true, ""
	case reminder.TTSNameOnly:
		return false, message
	case reminder.TTSCustomText:
		if rem.TTSCustom != "" {
			return false, rem.TTSCustom
		}
		return false, message
	default:
		return false, ""
	}
}

// prettyDose renders one dose relative to now, for example
// "3 hours ago at 6:20 (1 hour late, 1/3)".
func prettyDose(dose engine.Dose, cycle int, rem *reminder.Reminder, loc *time.Location, now time.Time, lateFlag bool) string {
	var extra []string
	late := dose.Late()
	absLate := late
	if absLate < 0 {
		absLate = -absLate
	}
	if lateFlag && absLate > rem.CorrectionAmount {
		direction := "late"
		if late < 0 {
			direction = "early"
		}
		extra = append(extra, fmt.Sprintf("%s %s", naturalDelta(late, false, true), direction))
	}
	if rem.CyclesPerDay != 1 && absLate > rem.Period()/2 {
		extra = append(extra, fmt.Sprintf("%d/%d", cycle+1, rem.CyclesPerDay))
	}
	suffix := ""
	if len(extra) > 0 {
		suffix = fmt.Sprintf("\u2002(%s)", strings.Join(extra, ", "))
	}
	timeStr := fixTimeStr(dose.Timestamp.In(loc).Format("15:04"))
	return fmt.Sprintf("%s at %s%s", naturalDelta(now.Sub(dose.Timestamp), true, true), timeStr, suffix)
}

func gapsLine(tail []reminder.HistoryEntry) string {
	var gaps []string
	for i := 0; i+1 < len(tail); i++ {
		gaps = append(gaps, naturalDelta(tail[i].Timestamp.Sub(tail[i+1].Timestamp), false, true))
	}
	return strings.Join(gaps, ", ")
}

func scheduleLine(sch *schedule.Schedule, now time.Time) string {
	var times []string
	for _, sec := range sch.TimesOfDay() {
		times = append(times, fixTimeStr(fmt.Sprintf("%02d:%02d", sec/3600, sec%3600/60)))
	}
	zone, _ := now.In(sch.Location()).Zone()
	return fmt.Sprintf("%s\u2002(%s)", strings.Join(times, ", "), zone)
}

// naturalDelta humanizes a duration: the largest unit whose rounded
// count reads naturally, sign-blind unless relative is set. With
// hoursOnly the scale stops at hours, so long gaps stay comparable.
func naturalDelta(delta time.Duration, relative, hoursOnly bool) string {
	seconds := delta.Seconds()
	past := seconds >= 0
	minutes := math.Abs(seconds) / 60
	hours := minutes / 60
	days := hours / 24
	weeks := days / 7
	years := days / 365.2425
	months := years * 12

	if relative && minutes < 1 {
		return "now"
	}
	relativeText := ""
	if relative {
		if past {
			relativeText = " ago"
		} else {
			relativeText = " from now"
		}
	}

	if m := math.Round(minutes); m < 60 {
		return fmt.Sprintf("%d %s%s", int(m), plural("minute", int(m)), relativeText)
	}
	if h := math.Round(hours); h < 24 || hoursOnly {
		return fmt.Sprintf("%d %s%s", int(h), plural("hour", int(h)), relativeText)
	}
	if d := math.Round(days); d < 7 {
		return fmt.Sprintf("%d %s%s", int(d), plural("day", int(d)), relativeText)
	}
	if w := math.Round(weeks); months < 1 {
		return fmt.Sprintf("%d %s%s", int(w), plural("week", int(w)), relativeText)
	}
	if m := math.Round(months); m < 12 {
		return fmt.Sprintf("%d %s%s", int(m), plural("month", int(m)), relativeText)
	}
	y := math.Round(years)
	return fmt.Sprintf("%d %s%s", int(y), plural("year", int(y)), relativeText)
}

func plural(unit string, n int) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// fixTimeStr drops the leading zero of an HH:MM string, keeping a
// single zero for the midnight hour.
func fixTimeStr(s string) string {
	if strings.HasPrefix(s, "00") {
		return s[1:]
	}
	return strings.TrimLeft(s, "0")
}

func parseColor(hex string) (int, error) {
	if !strings.HasPrefix(hex, "#") || len(hex) != 7 {
		return 0, fmt.Errorf("color %q is not a #rrggbb value: %w",
			hex, reminder.ErrInvalidConfiguration)
	}
	value, err := strconv.ParseInt(hex[1:], 16, 32)
	if err != nil {
		return 0, fmt.Errorf("color %q is not a #rrggbb value: %w",
			hex, reminder.ErrInvalidConfiguration)
	}
	return int(value), nil
}
