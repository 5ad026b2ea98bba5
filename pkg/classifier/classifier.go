package classifier

import (
	"github.com/raulbalestra/helovox/pkg/domain"
	"github.com/raulbalestra/helovox/pkg/keyword"
)

// Classifier assigns each inbound message to exactly one handling
// category. Classification is pure: it reads the message and the chat's
// pending-image flag and has no side effects.
//
// Precedence is fixed: an image attachment beats everything, including a
// mention in the same message's caption; the describe confirmation only
// counts while an image is pending; voice notes are always processed
// immediately; a mention beats the direct-message fallback.
type Classifier struct {
	mention keyword.Matcher
	confirm keyword.Matcher
}

func New(mentionWord, confirmWord string) *Classifier {
	return &Classifier{
		mention: keyword.NewMatcher(mentionWord),
		confirm: keyword.NewMatcher(confirmWord),
	}
}

func (c *Classifier) Classify(msg *domain.InboundMessage, hasPendingImage bool) (domain.Category, error) {
	if msg.ChatID == "" {
		return 0, domain.ErrInvalidMessage
	}

	switch {
	case msg.HasImage():
		return domain.CategoryImageReceived, nil
	case hasPendingImage && c.confirm.Matches(msg.Text):
		return domain.CategoryImageConfirm, nil
	case msg.HasAudio():
		return domain.CategoryAudioReceived, nil
	case c.mention.Matches(msg.Text):
		return domain.CategoryMentionTrigger, nil
	case !msg.IsGroup:
		return domain.CategoryDirectMessage, nil
	default:
		return domain.CategoryPassiveLog, nil
	}
}
