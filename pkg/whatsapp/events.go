package whatsapp

import (
	"log/slog"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/raulbalestra/helovox/pkg/domain"
)

func (c *Client) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		c.handleMessage(evt)

	case *events.Connected:
		c.connected.Store(true)
		slog.Info("Helovox está pronta para facilitar sua vida!")

	case *events.Disconnected:
		c.connected.Store(false)
		slog.Warn("WhatsApp disconnected")

	case *events.LoggedOut:
		c.connected.Store(false)
		slog.Error("Logged out by the server, the session must be paired again", "reason", evt.Reason)

	case *events.StreamReplaced:
		slog.Error("Stream replaced by another session")
	}
}

// handleMessage converts a whatsmeow message event into the
// transport-neutral inbound form. Messages from the bot itself, status
// broadcasts and unsupported media types are dropped here.
func (c *Client) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}
	if evt.Info.Chat.Server == types.BroadcastServer {
		return
	}

	msg := &domain.InboundMessage{
		ChatID:    evt.Info.Chat.String(),
		Sender:    evt.Info.Sender.String(),
		IsGroup:   evt.Info.IsGroup,
		Timestamp: evt.Info.Timestamp,
	}

	if !extractContent(evt.Message, msg) {
		slog.Debug("Ignoring unsupported message type", "chatID", msg.ChatID)
		return
	}

	if c.closed.Load() {
		return
	}

	select {
	case c.messages <- msg:
	default:
		slog.Warn("Inbound queue full, dropping message", "chatID", msg.ChatID)
	}
}

// extractContent fills text and attachment from the wire message.
// Returns false for message types the bot does not handle.
func extractContent(waMsg *waE2E.Message, msg *domain.InboundMessage) bool {
	if waMsg == nil {
		return false
	}

	if waMsg.Conversation != nil {
		msg.Text = waMsg.GetConversation()
		return true
	}

	if ext := waMsg.ExtendedTextMessage; ext != nil {
		msg.Text = ext.GetText()
		return true
	}

	if img := waMsg.ImageMessage; img != nil {
		msg.Text = img.GetCaption()
		msg.Attachment = &domain.Attachment{Kind: domain.MediaKindImage, Ref: img}
		return true
	}

	// Only voice notes are transcribed; plain audio files are ignored.
	if audio := waMsg.AudioMessage; audio != nil && audio.GetPTT() {
		msg.Attachment = &domain.Attachment{Kind: domain.MediaKindAudio, Ref: audio}
		return true
	}

	return false
}
