package bot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// channelSink streams leaderboard output into one Discord text channel.
// It satisfies leaderboard.Sink.
type channelSink struct {
	session   *discordgo.Session
	channelID string
}

func newChannelSink(session *discordgo.Session, channelID string) *channelSink {
	return &channelSink{session: session, channelID: channelID}
}

// Clear bulk-deletes the previous leaderboard output. Discord only
// bulk-deletes 100 messages at a time, which matches one leaderboard's
// worth of output.
func (s *channelSink) Clear(ctx context.Context) error {
	messages, err := s.session.ChannelMessages(s.channelID, 100, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to list channel messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}

	if err := s.session.ChannelMessagesBulkDelete(s.channelID, ids, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to clear channel: %w", err)
	}
	return nil
}

func (s *channelSink) SendText(ctx context.Context, content string) (string, error) {
	msg, err := s.session.ChannelMessageSend(s.channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

func (s *channelSink) EditText(ctx context.Context, ref, content string) error {
	if _, err := s.session.ChannelMessageEdit(s.channelID, ref, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (s *channelSink) SendImage(ctx context.Context, filename string, png []byte) error {
	_, err := s.session.ChannelFileSend(s.channelID, filename, bytes.NewReader(png), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to send card: %w", err)
	}
	return nil
}
