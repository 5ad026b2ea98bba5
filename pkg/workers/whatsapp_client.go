package workers

import (
	"context"
	"log/slog"
)

type Connector interface {
	Connect(ctx context.Context) error
	Disconnect()
}

type whatsappClient struct {
	client Connector
}

func NewWhatsAppClient(client Connector) (*whatsappClient, error) {
	return &whatsappClient{client: client}, nil
}

func (w *whatsappClient) Name() string { return "whatsapp_client" }

// Start connects (running the QR pairing flow when needed) and holds the
// connection until shutdown.
func (w *whatsappClient) Start(ctx context.Context) error {
	slog.Info("Starting worker", "name", w.Name())
	defer slog.Info("Worker stopped", "name", w.Name())

	if err := w.client.Connect(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	w.client.Disconnect()

	return nil
}
