package domain

import "time"

type MediaKind string

const (
	MediaKindText  MediaKind = "text"
	MediaKindImage MediaKind = "image"
	MediaKindAudio MediaKind = "audio"
)

// Attachment references a media payload carried by an inbound message.
// Ref is transport-specific and opaque to everything except the transport
// that produced it.
type Attachment struct {
	Kind MediaKind
	Ref  any
}

// InboundMessage is the transport-neutral view of a received message.
type InboundMessage struct {
	ChatID     string
	Sender     string
	Text       string
	IsGroup    bool
	Attachment *Attachment
	Timestamp  time.Time
}

func (m *InboundMessage) HasImage() bool {
	return m.Attachment != nil && m.Attachment.Kind == MediaKindImage
}

func (m *InboundMessage) HasAudio() bool {
	return m.Attachment != nil && m.Attachment.Kind == MediaKindAudio
}
