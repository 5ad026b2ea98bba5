package assembler

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/raulbalestra/helovox/pkg/domain"
)

const persona = "Você é Helovox, uma assistente virtual super gentil, profissional, " +
	"e inteligente, criada por Raul Balestra e Higor Felipe."

// HistoryReader is the read-only slice of the conversation store the
// assembler needs.
type HistoryReader interface {
	RecentByChatID(ctx context.Context, chatID string, limit int) ([]domain.ConversationRecord, error)
	LastImageDescription(ctx context.Context, chatID string) (string, bool, error)
}

// Assembler builds the generation prompt for a chat. Resolution is
// first-match-wins: last image description, then stored history, then a
// no-context prompt. The branches are never combined — an image follow-up
// answers about the image, not about older small talk.
type Assembler struct {
	store        HistoryReader
	historyLimit int
}

func New(store HistoryReader, historyLimit int) *Assembler {
	return &Assembler{store: store, historyLimit: historyLimit}
}

// BuildPrompt never mutates the store and cannot fail on an empty chat;
// only store read errors propagate.
func (a *Assembler) BuildPrompt(ctx context.Context, chatID, userText string) (string, error) {
	description, ok, err := a.store.LastImageDescription(ctx, chatID)
	if err != nil {
		return "", fmt.Errorf("fetching last image description: %w", err)
	}
	if ok {
		return fmt.Sprintf("%s A última imagem descrita neste chat é: %q. "+
			"Baseado nisso, responda ao seguinte texto: %q.", persona, description, userText), nil
	}

	records, err := a.store.RecentByChatID(ctx, chatID, a.historyLimit)
	if err != nil {
		return "", fmt.Errorf("fetching recent history: %w", err)
	}
	if len(records) > 0 {
		// Records arrive newest-first and are joined in that order, so the
		// oldest interaction shows last.
		lines := lo.Map(records, func(r domain.ConversationRecord, _ int) string {
			return fmt.Sprintf("Usuário: %s disse: %q", r.Author, r.UserMessage)
		})
		return fmt.Sprintf("%s As últimas interações relevantes neste contexto foram:\n%s\n"+
			"Baseado nisso, responda ao seguinte texto: %q.", persona, strings.Join(lines, "\n"), userText), nil
	}

	return fmt.Sprintf("%s Não tenho informações anteriores sobre este contexto específico. "+
		"Responda ao seguinte texto: %q da melhor forma possível.", persona, userText), nil
}
