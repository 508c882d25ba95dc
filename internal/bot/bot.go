// Package bot turns chat messages into engine operations. Commands are
// single-line texts like "1", "1 42m" or "1 mute 3d"; every reminder is
// bound to one channel and the bot redirects users who address it from
// elsewhere.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/stefs/evelyn-reminder/internal/discord"
	"github.com/stefs/evelyn-reminder/internal/engine"
	"github.com/stefs/evelyn-reminder/internal/pingview"
	"github.com/stefs/evelyn-reminder/internal/reminder"
)

const helpText = "`help` - Show this help\n" +
	"`?` - List your registered reminders \\*\n" +
	"`all?` - List registered reminders from all users\n" +
	"`1?` - Show status of reminder 1 \\*\n" +
	"`1` - Record reminder 1 done \\*\n" +
	"`1 42m` - Record reminder 1 done 42 minutes ago \\*\\* \\*\n" +
	"`1 del` - Delete last record of reminder 1 \\*\n" +
	"`1 13:37` - Set time of last reminder of the day \\*\n" +
	"`1 mute 3d` - Mute reminder 1 for 3 days \\*\\* \\*\n" +
	"`1 unmute` - Unmute reminder 1 \\*\n" +
	"\\*) append `@user` to execute for someone else\n" +
	"\\*\\*) use one or more of: `m`in, `h`our, `d`ay, `w`eek, `M`onth, `y`ear\n" +
	"\n" +
	"Made with love\n" +
	"This bot is free software, licensed under GPL\n" +
	"https://github.com/stefs/evelyn-reminder"

const helpColor = 0x808080

type Bot struct {
	engine *engine.Engine
	client discord.Client
	now    func() time.Time
}

func New(eng *engine.Engine, client discord.Client) *Bot {
	return &Bot{
		engine: eng,
		client: client,
		now:    time.Now,
	}
}

// Register hooks the bot into the client's message stream.
func (b *Bot) Register() {
	b.client.RegisterMessageHandler(b.HandleMessage)
}

// response is what a handled command sends back to the channel.
type response struct {
	text   string
	member int64
	emote  int64
	embed  *discord.Embed
}

// HandleMessage processes one incoming message. Texts that are not
// commands are ignored silently.
func (b *Bot) HandleMessage(event discord.MessageEvent) {
	if event.AuthorIsBot {
		return
	}
	cmd, ok := ParseCommand(event.Content)
	if !ok {
		return
	}
	guild, err := strconv.ParseInt(event.GuildID, 10, 64)
	if err != nil {
		return
	}
	author, err := strconv.ParseInt(event.AuthorID, 10, 64)
	if err != nil {
		return
	}
	channel, err := strconv.ParseInt(event.ChannelID, 10, 64)
	if err != nil {
		return
	}

	resp := b.runCommand(context.Background(), cmd, guild, author, channel)
	if resp == nil {
		return
	}

	text := resp.text
	if resp.member != 0 {
		text = fmt.Sprintf("<@%d> %s", resp.member, text)
	}
	if resp.emote != 0 {
		if emote := b.client.EmoteString(event.GuildID, resp.emote); emote != "" {
			text = fmt.Sprintf("%s %s", text, emote)
		}
	}
	if _, err := b.client.SendMessage(discord.Message{
		ChannelID: event.ChannelID,
		Content:   text,
		Embed:     resp.embed,
	}); err != nil {
		slog.Error("command response failed", "error", err, "channel_id", event.ChannelID)
	}
}

func (b *Bot) runCommand(ctx context.Context, cmd Command, guild, author, channel int64) *response {
	// An @user suffix runs the command for someone else; the answer
	// then mentions them.
	subject := author
	mention := int64(0)
	if cmd.Member != 0 {
		subject = cmd.Member
		mention = cmd.Member
	}

	switch cmd.Type {
	case CommandHelp:
		return &response{
			text: "Here is how to use this bot.",
			embed: &discord.Embed{
				Title:       "Command help",
				Description: helpText,
				Color:       helpColor,
			},
		}
	case CommandList:
		return b.listReminders(ctx, guild, &subject, mention)
	case CommandListAll:
		return b.listReminders(ctx, guild, nil, mention)
	}

	key := reminder.Key{Guild: guild, Member: subject, Slot: cmd.Slot}
	rem, err := b.engine.Inspect(ctx, key, b.now().UTC())
	if errors.Is(err, reminder.ErrNotFound) {
		return &response{member: mention, text: fmt.Sprintf("You don't have a reminder %d!", cmd.Slot)}
	}
	if err != nil {
		slog.Error("command failed", "error", err, "key", key.String())
		return nil
	}
	if rem.Reminder.Channel != channel {
		return &response{text: fmt.Sprintf("Please use the channel <#%d> for the reminder %q!",
			rem.Reminder.Channel, rem.Reminder.PingMessage)}
	}

	resp := b.runKeyCommand(ctx, cmd, key, mention)
	if resp == nil {
		return nil
	}

	// Every reminder command answers with a fresh status box.
	view, err := b.engine.Inspect(ctx, key, b.now().UTC())
	if err == nil {
		if ping, buildErr := pingview.Build(view, b.now().UTC()); buildErr == nil {
			embed := ping.Embed(true)
			resp.embed = &embed
		}
	}
	return resp
}

func (b *Bot) runKeyCommand(ctx context.Context, cmd Command, key reminder.Key, mention int64) *response {
	now := b.now().UTC()
	switch cmd.Type {
	case CommandInfo:
		return &response{member: mention, text: "Here is the status of your reminder."}
	case CommandTaken:
		at := now
		if cmd.HasDuration {
			at = now.Add(-cmd.Duration)
		}
		ack, err := b.engine.RecordDone(ctx, key, at, now)
		if errors.Is(err, reminder.ErrOrderingConflict) {
			return &response{member: mention, text: "That time is before the previous record!"}
		}
		if err != nil {
			slog.Error("record failed", "error", err, "key", key.String())
			return nil
		}
		return &response{member: mention, text: ack.Message, emote: ack.Emote}
	case CommandDelete:
		_, err := b.engine.UndoLastDone(ctx, key)
		if errors.Is(err, reminder.ErrEmptyLedger) {
			return &response{member: mention, text: "There is no record to delete!"}
		}
		if err != nil {
			slog.Error("undo failed", "error", err, "key", key.String())
			return nil
		}
		return &response{member: mention, text: "The last record of your reminder was deleted."}
	case CommandBedTime:
		bedTime := cmd.BedTimeSecs
		if _, err := b.engine.ApplyUpdate(ctx, key, engine.Update{BedTime: &bedTime}); err != nil {
			slog.Error("bed time update failed", "error", err, "key", key.String())
			return nil
		}
		return &response{member: mention, text: "The bed time of your reminder was adjusted."}
	case CommandMute:
		if err := b.engine.Mute(ctx, key, now.Add(cmd.Duration)); err != nil {
			slog.Error("mute failed", "error", err, "key", key.String())
			return nil
		}
		return &response{member: mention, text: "Your reminder was muted."}
	case CommandUnmute:
		if err := b.engine.Unmute(ctx, key, now); err != nil {
			slog.Error("unmute failed", "error", err, "key", key.String())
			return nil
		}
		return &response{member: mention, text: "Your reminder was unmuted."}
	default:
		return nil
	}
}

func (b *Bot) listReminders(ctx context.Context, guild int64, member *int64, mention int64) *response {
	filter := reminder.ListFilter{Guild: &guild, Member: member}
	rems, err := b.engine.ListReminders(ctx, filter)
	if err != nil {
		slog.Error("list failed", "error", err, "guild", guild)
		return nil
	}
	var lines []string
	for _, rem := range rems {
		line := fmt.Sprintf("[%d] %s", rem.Key.Slot, rem.PingMessage)
		if member == nil {
			line = fmt.Sprintf("<@%d> - %s", rem.Key.Member, line)
		}
		lines = append(lines, line)
	}
	text := fmt.Sprintf("You have %d registered reminders.", len(lines))
	if member == nil {
		text = fmt.Sprintf("There are %d registered reminders.", len(lines))
	}
	resp := &response{member: mention, text: text}
	if len(lines) > 0 {
		resp.embed = &discord.Embed{
			Title:       "Reminders",
			Description: strings.Join(lines, "\n"),
			Color:       helpColor,
		}
	}
	return resp
}
