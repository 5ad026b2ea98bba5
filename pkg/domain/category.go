package domain

// Category is the handling class assigned to an inbound message.
// Exactly one category fires per message, in declaration order.
type Category int

const (
	CategoryImageReceived Category = iota
	CategoryImageConfirm
	CategoryAudioReceived
	CategoryMentionTrigger
	CategoryDirectMessage
	CategoryPassiveLog
)

func (c Category) String() string {
	switch c {
	case CategoryImageReceived:
		return "image_received"
	case CategoryImageConfirm:
		return "image_confirm"
	case CategoryAudioReceived:
		return "audio_received"
	case CategoryMentionTrigger:
		return "mention_trigger"
	case CategoryDirectMessage:
		return "direct_message"
	case CategoryPassiveLog:
		return "passive_log"
	default:
		return "unknown"
	}
}
