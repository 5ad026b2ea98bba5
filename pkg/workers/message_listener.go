package workers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/raulbalestra/helovox/pkg/domain"
)

type MessageSource interface {
	Messages() <-chan *domain.InboundMessage
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg *domain.InboundMessage)
}

// messageListener pulls inbound messages off the transport and runs each
// one's pipeline in its own goroutine, so a slow media pipeline never
// blocks messages from other chats. Records therefore land in completion
// order, not arrival order.
type messageListener struct {
	source     MessageSource
	dispatcher Dispatcher
	wg         sync.WaitGroup
}

func NewMessageListener(source MessageSource, dispatcher Dispatcher) (*messageListener, error) {
	return &messageListener{
		source:     source,
		dispatcher: dispatcher,
	}, nil
}

func (l *messageListener) Name() string { return "message_listener" }

func (l *messageListener) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", l.Name())
	defer slog.Info("Worker stopped", "name", l.Name())

	for {
		select {
		case <-ctx.Done():
			l.wg.Wait()
			return nil
		case msg, ok := <-l.source.Messages():
			if !ok {
				l.wg.Wait()
				return nil
			}
			l.wg.Add(1)
			go func(msg *domain.InboundMessage) {
				defer l.wg.Done()
				l.dispatcher.Dispatch(ctx, msg)
			}(msg)
		}
	}
}
