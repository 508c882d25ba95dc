// Package dispatch runs the periodic ping check: every tick it asks the
// engine which reminders want an escalation ping, sends them to their
// channels and fans them out to the webhook.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stefs/evelyn-reminder/internal/discord"
	"github.com/stefs/evelyn-reminder/internal/engine"
	"github.com/stefs/evelyn-reminder/internal/pingview"
	"github.com/stefs/evelyn-reminder/internal/webhook"
)

type Dispatcher struct {
	engine   *engine.Engine
	client   discord.Client
	sender   webhook.Sender
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

// New builds a dispatcher. The client may be nil when the chat
// integration is disabled; pings then go to the webhook only.
func New(eng *engine.Engine, client discord.Client, sender webhook.Sender, schedule string) *Dispatcher {
	return &Dispatcher{
		engine:   eng,
		client:   client,
		sender:   sender,
		schedule: schedule,
		now:      time.Now,
	}
}

// Start begins the periodic check.
func (d *Dispatcher) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(d.schedule, d.RunCheck); err != nil {
		return fmt.Errorf("invalid check schedule %q: %w", d.schedule, err)
	}
	c.Start()
	d.cron = c
	slog.Info("ping dispatcher started", "schedule", d.schedule)
	return nil
}

// Stop halts the periodic check and waits for a running check to
// finish.
func (d *Dispatcher) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
}

// RunCheck evaluates all reminders once and delivers the due pings. A
// failed delivery is logged and retried on the next tick because the
// last-ping mark is only advanced after a successful send.
func (d *Dispatcher) RunCheck() {
	ctx := context.Background()
	now := d.now().UTC()

	views, err := d.engine.ListDue(ctx, engine.ListOptions{
		FilterDue:     true,
		FilterMuted:   true,
		FilterPingDue: true,
	}, now)
	if err != nil {
		slog.Error("ping check failed", "error", err)
		return
	}

	for _, view := range views {
		if err := d.ping(ctx, view, now); err != nil {
			slog.Error("ping delivery failed", "error", err, "key", view.Reminder.Key.String())
			continue
		}
		if err := d.engine.MarkPinged(ctx, view.Reminder.Key, now); err != nil {
			slog.Error("marking ping failed", "error", err, "key", view.Reminder.Key.String())
		}
	}
}

func (d *Dispatcher) ping(ctx context.Context, view *engine.View, now time.Time) error {
	ping, err := pingview.Build(view, now)
	if err != nil {
		return err
	}

	if d.client != nil {
		if err := d.sendToChannel(ping); err != nil {
			return err
		}
	}

	if d.sender != nil {
		payload := webhook.PingWebhookPayload{
			SchemaVersion: webhook.SchemaVersion,
			Guild:         ping.Key.Guild,
			Member:        ping.Key.Member,
			Slot:          ping.Key.Slot,
			Message:       ping.Message,
			When:          ping.When,
			Status:        string(view.Snapshot.Status),
			DueAt:         view.Snapshot.Target.Timestamp,
			PingedAt:      now,
		}
		if err := d.sender.SendPing(ctx, payload); err != nil {
			// The chat ping went out; the webhook catches up next tick.
			slog.Error("webhook delivery failed", "error", err, "key", ping.Key.String())
		}
	}
	return nil
}

func (d *Dispatcher) sendToChannel(ping *pingview.Ping) error {
	channelID := strconv.FormatInt(ping.Channel, 10)
	embed := ping.Embed(false)
	if _, err := d.client.SendMessage(discord.Message{
		ChannelID: channelID,
		Content:   fmt.Sprintf("<@%d> %s", ping.Key.Member, ping.Message),
		TTS:       ping.TTSMessage,
		Embed:     &embed,
	}); err != nil {
		return err
	}

	// A custom spoken text goes out as its own TTS message and is
	// removed right away so only the ping itself stays in the channel.
	if ping.TTSCustom != "" {
		messageID, err := d.client.SendMessage(discord.Message{
			ChannelID: channelID,
			Content:   ping.TTSCustom,
			TTS:       true,
		})
		if err != nil {
			return err
		}
		if err := d.client.DeleteMessage(channelID, messageID); err != nil {
			slog.Error("removing tts message failed", "error", err, "channel_id", channelID)
		}
	}
	return nil
}
