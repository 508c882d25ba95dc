package discord

import "context"

type Embed struct {
	Title       string
	Description string
	Color       int
}

// Message is an outgoing channel message. TTS makes the client read it
// aloud; Embed is optional.
type Message struct {
	ChannelID string
	Content   string
	TTS       bool
	Embed     *Embed
}

// MessageEvent is an incoming guild message. The bot's own messages are
// filtered out by the client.
type MessageEvent struct {
	GuildID          string
	ChannelID        string
	MessageID        string
	AuthorID         string
	AuthorIsBot      bool
	Content          string
	MentionedUserIDs []string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	// SendMessage returns the ID of the sent message.
	SendMessage(msg Message) (string, error)
	DeleteMessage(channelID, messageID string) error
	// EmoteString renders a custom guild emote so it displays inline in
	// a message. Returns the empty string when the emote is unknown.
	EmoteString(guildID string, emoteID int64) string
	RegisterMessageHandler(handler func(MessageEvent))
	Run() error
}
