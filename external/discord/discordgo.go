package discord

import (
	"context"
	"strconv"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/stefs/evelyn-reminder/internal/discord"
)

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildEmojis |
		discordgo.IntentMessageContent)
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.getBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) SendMessage(msg discordpkg.Message) (string, error) {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		TTS:     msg.TTS,
	}
	if msg.Embed != nil {
		send.Embed = &discordgo.MessageEmbed{
			Type:        discordgo.EmbedTypeRich,
			Title:       msg.Embed.Title,
			Description: msg.Embed.Description,
			Color:       msg.Embed.Color,
		}
	}
	sent, err := c.session.ChannelMessageSendComplex(msg.ChannelID, send)
	if err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (c *Client) DeleteMessage(channelID, messageID string) error {
	return c.session.ChannelMessageDelete(channelID, messageID)
}

func (c *Client) EmoteString(guildID string, emoteID int64) string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	guild, err := c.session.State.Guild(guildID)
	if err != nil || guild == nil {
		return ""
	}
	id := strconv.FormatInt(emoteID, 10)
	for _, emoji := range guild.Emojis {
		if emoji != nil && emoji.ID == id {
			return emoji.MessageFormat()
		}
	}
	return ""
}

func (c *Client) RegisterMessageHandler(handler func(discordpkg.MessageEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Author == nil {
			return
		}
		if m.Author.ID == c.botUserID {
			return
		}
		if m.GuildID == "" {
			return
		}
		mentioned := make([]string, 0, len(m.Mentions))
		for _, user := range m.Mentions {
			if user != nil {
				mentioned = append(mentioned, user.ID)
			}
		}
		handler(discordpkg.MessageEvent{
			GuildID:          m.GuildID,
			ChannelID:        m.ChannelID,
			MessageID:        m.ID,
			AuthorID:         m.Author.ID,
			AuthorIsBot:      m.Author.Bot,
			Content:          m.Content,
			MentionedUserIDs: mentioned,
		})
	})
}

func (c *Client) getBotUserID() (string, error) {
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		return c.session.State.User.ID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

func (c *Client) Run() error {
	select {}
}
