package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stefs/evelyn-reminder/internal/discord"
	"github.com/stefs/evelyn-reminder/internal/engine"
	"github.com/stefs/evelyn-reminder/internal/reminder"
	"github.com/stefs/evelyn-reminder/internal/reminder/remindertest"
)

type fakeClient struct {
	sent    []discord.Message
	deleted []string
	emotes  map[int64]string
	handler func(discord.MessageEvent)
}

func (c *fakeClient) Connect(context.Context) error { return nil }
func (c *fakeClient) Close() error                  { return nil }
func (c *fakeClient) Run() error                    { return nil }

func (c *fakeClient) SendMessage(msg discord.Message) (string, error) {
	c.sent = append(c.sent, msg)
	return "msg-1", nil
}

func (c *fakeClient) DeleteMessage(channelID, messageID string) error {
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeClient) EmoteString(_ string, emoteID int64) string {
	return c.emotes[emoteID]
}

func (c *fakeClient) RegisterMessageHandler(handler func(discord.MessageEvent)) {
	c.handler = handler
}

func utc(hour, minute int) time.Time {
	return time.Date(2024, 3, 10, hour, minute, 0, 0, time.UTC)
}

func newTestBot(t *testing.T, now time.Time) (*Bot, *remindertest.Memory, *fakeClient) {
	t.Helper()
	repo := remindertest.NewMemory()
	rem := reminder.NewReminder(reminder.Key{Guild: 1, Member: 2, Slot: 1}, 42, "UTC")
	rem.CorrectionAmount = 10 * time.Minute
	rem.ResponseEmotes = "100"
	if err := repo.UpsertReminder(context.Background(), rem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client := &fakeClient{emotes: map[int64]string{100: "<:ok:100>"}}
	bot := New(engine.New(repo), client)
	bot.now = func() time.Time { return now }
	return bot, repo, client
}

func event(content string) discord.MessageEvent {
	return discord.MessageEvent{
		GuildID:   "1",
		ChannelID: "42",
		MessageID: "m-1",
		AuthorID:  "2",
		Content:   content,
	}
}

func lastSent(t *testing.T, client *fakeClient) discord.Message {
	t.Helper()
	if len(client.sent) == 0 {
		t.Fatal("expected a message to be sent")
	}
	return client.sent[len(client.sent)-1]
}

func TestHandleMessage_RecordsCompletion(t *testing.T) {
	bot, repo, client := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("1"))

	msg := lastSent(t, client)
	if msg.Content != "Nice <:ok:100>" {
		t.Fatalf("unexpected reply %q", msg.Content)
	}
	if msg.Embed == nil {
		t.Fatal("expected a status embed with the reply")
	}
	key := reminder.Key{Guild: 1, Member: 2, Slot: 1}
	if len(repo.History[key]) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(repo.History[key]))
	}
}

func TestHandleMessage_BackdatedCompletion(t *testing.T) {
	bot, repo, _ := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("1 42m"))

	key := reminder.Key{Guild: 1, Member: 2, Slot: 1}
	entries := repo.History[key]
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(entries))
	}
	if !entries[0].Timestamp.Equal(utc(5, 38)) {
		t.Fatalf("expected completion 42 minutes back, got %v", entries[0].Timestamp)
	}
}

func TestHandleMessage_WrongChannel(t *testing.T) {
	bot, _, client := newTestBot(t, utc(6, 20))

	ev := event("1")
	ev.ChannelID = "43"
	bot.HandleMessage(ev)

	msg := lastSent(t, client)
	want := `Please use the channel <#42> for the reminder "Reminder text"!`
	if msg.Content != want {
		t.Fatalf("unexpected reply %q", msg.Content)
	}
	if msg.Embed != nil {
		t.Fatal("expected no embed on the channel redirect")
	}
}

func TestHandleMessage_UnknownReminder(t *testing.T) {
	bot, _, client := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("7"))

	if msg := lastSent(t, client); msg.Content != "You don't have a reminder 7!" {
		t.Fatalf("unexpected reply %q", msg.Content)
	}
}

func TestHandleMessage_RunsForMentionedMember(t *testing.T) {
	bot, repo, client := newTestBot(t, utc(6, 20))
	other := reminder.NewReminder(reminder.Key{Guild: 1, Member: 123456789012345678, Slot: 1}, 42, "UTC")
	if err := repo.UpsertReminder(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bot.HandleMessage(event("1 <@!123456789012345678>"))

	msg := lastSent(t, client)
	if !strings.HasPrefix(msg.Content, "<@123456789012345678> Nice") {
		t.Fatalf("expected reply to mention the member, got %q", msg.Content)
	}
	key := reminder.Key{Guild: 1, Member: 123456789012345678, Slot: 1}
	if len(repo.History[key]) != 1 {
		t.Fatal("expected the record to land on the mentioned member")
	}
}

func TestHandleMessage_Help(t *testing.T) {
	bot, _, client := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("help"))

	msg := lastSent(t, client)
	if msg.Embed == nil || msg.Embed.Title != "Command help" {
		t.Fatalf("expected help embed, got %+v", msg.Embed)
	}
	if !strings.Contains(msg.Embed.Description, "`1 42m`") {
		t.Fatal("expected help text to document the backdate command")
	}
}

func TestHandleMessage_List(t *testing.T) {
	bot, _, client := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("?"))

	msg := lastSent(t, client)
	if msg.Content != "You have 1 registered reminders." {
		t.Fatalf("unexpected reply %q", msg.Content)
	}
	if msg.Embed == nil || !strings.Contains(msg.Embed.Description, "[1] Reminder text") {
		t.Fatalf("expected reminder listing, got %+v", msg.Embed)
	}
}

func TestHandleMessage_Mute(t *testing.T) {
	bot, repo, client := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("1 mute 3d"))

	if msg := lastSent(t, client); msg.Content != "Your reminder was muted." {
		t.Fatalf("unexpected reply %q", msg.Content)
	}
	key := reminder.Key{Guild: 1, Member: 2, Slot: 1}
	if until := repo.Reminders[key].MuteUntil; !until.Equal(utc(6, 20).Add(72 * time.Hour)) {
		t.Fatalf("unexpected mute until %v", until)
	}
}

func TestHandleMessage_DeleteWithoutRecords(t *testing.T) {
	bot, _, client := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("1 del"))

	if msg := lastSent(t, client); msg.Content != "There is no record to delete!" {
		t.Fatalf("unexpected reply %q", msg.Content)
	}
}

func TestHandleMessage_BedTime(t *testing.T) {
	bot, repo, client := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("1 13:37"))

	if msg := lastSent(t, client); msg.Content != "The bed time of your reminder was adjusted." {
		t.Fatalf("unexpected reply %q", msg.Content)
	}
	key := reminder.Key{Guild: 1, Member: 2, Slot: 1}
	if got := repo.Reminders[key].BedTime; got != 13*3600+37*60 {
		t.Fatalf("unexpected bed time %d", got)
	}
}

func TestHandleMessage_IgnoresChatter(t *testing.T) {
	bot, _, client := newTestBot(t, utc(6, 20))

	bot.HandleMessage(event("good morning everyone"))

	if len(client.sent) != 0 {
		t.Fatalf("expected no reply, got %+v", client.sent)
	}
}
