package bot

import (
	"regexp"
	"strconv"
	"time"
)

type CommandType int

const (
	CommandHelp CommandType = iota + 1
	CommandList
	CommandListAll
	CommandInfo
	CommandTaken
	CommandDelete
	CommandBedTime
	CommandMute
	CommandUnmute
)

// Command is a parsed chat command. Slot is 0 when the command does not
// address one reminder; Member is 0 without an @user suffix.
type Command struct {
	Type        CommandType
	Slot        int
	Member      int64
	BedTimeSecs int
	Duration    time.Duration
	HasDuration bool
}

type commandPattern struct {
	commandType CommandType
	pattern     *regexp.Regexp
}

// The @user suffix addresses another member, for example when a
// caretaker records for someone else.
var commandPatterns = []commandPattern{
	{CommandHelp, regexp.MustCompile(`^help$`)},
	{CommandList, regexp.MustCompile(`^\?( <@!?(?P<member>\d{18})>)?$`)},
	{CommandListAll, regexp.MustCompile(`^all\?$`)},
	{CommandInfo, regexp.MustCompile(`^(?P<key>[1-9])\?( <@!?(?P<member>\d{18})>)?$`)},
	{CommandDelete, regexp.MustCompile(`^(?P<key>[1-9]) del( <@!?(?P<member>\d{18})>)?$`)},
	{CommandBedTime, regexp.MustCompile(`^(?P<key>[1-9]) (?P<hour>\d{1,2}):(?P<minute>\d{2})( <@!?(?P<member>\d{18})>)?$`)},
	{CommandMute, regexp.MustCompile(`^(?P<key>[1-9]) mute (?P<duration>(\d+[mhdwMy])+)( <@!?(?P<member>\d{18})>)?$`)},
	{CommandUnmute, regexp.MustCompile(`^(?P<key>[1-9]) unmute( <@!?(?P<member>\d{18})>)?$`)},
	{CommandTaken, regexp.MustCompile(`^(?P<key>[1-9])( (?P<duration>(\d+[mhdwMy])+))?( <@!?(?P<member>\d{18})>)?$`)},
}

var durationPattern = regexp.MustCompile(`(?P<value>\d+)(?P<time>[mhdwMy])`)

const daysPerYear = 365.2425

var durationUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
	"M": time.Duration(daysPerYear / 12 * 24 * float64(time.Hour)),
	"y": time.Duration(daysPerYear * 24 * float64(time.Hour)),
}

// ParseCommand matches text against the command grammar. The second
// return value reports whether the text was a command at all.
func ParseCommand(text string) (Command, bool) {
	for _, candidate := range commandPatterns {
		match := candidate.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		groups := make(map[string]string)
		for i, name := range candidate.pattern.SubexpNames() {
			if name != "" && match[i] != "" {
				groups[name] = match[i]
			}
		}
		cmd := Command{Type: candidate.commandType}
		if raw, ok := groups["key"]; ok {
			cmd.Slot, _ = strconv.Atoi(raw)
		}
		if raw, ok := groups["member"]; ok {
			cmd.Member, _ = strconv.ParseInt(raw, 10, 64)
		}
		if raw, ok := groups["hour"]; ok {
			hour, _ := strconv.Atoi(raw)
			minute, _ := strconv.Atoi(groups["minute"])
			if hour > 23 || minute > 59 {
				return Command{}, false
			}
			cmd.BedTimeSecs = hour*3600 + minute*60
		}
		if raw, ok := groups["duration"]; ok {
			cmd.Duration = parseDuration(raw)
			cmd.HasDuration = true
		}
		return cmd, true
	}
	return Command{}, false
}

func parseDuration(raw string) time.Duration {
	var total time.Duration
	for _, match := range durationPattern.FindAllStringSubmatch(raw, -1) {
		value, _ := strconv.Atoi(match[1])
		total += time.Duration(value) * durationUnits[match[2]]
	}
	return total
}
