// Package whatsapp is the WhatsApp transport, built on whatsmeow. It
// pairs via QR code with a persistent SQLite session, converts incoming
// events into domain messages and sends text and voice-note replies.
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for the session store.

	"github.com/raulbalestra/helovox/pkg/domain"
)

type Config struct {
	// DatabasePath is the SQLite file holding the paired session.
	DatabasePath string

	// DeviceName shows up in the phone's linked-devices list.
	DeviceName string
}

type Client struct {
	cfg    Config
	client *whatsmeow.Client

	messages chan *domain.InboundMessage

	connected atomic.Bool
	closed    atomic.Bool
}

func NewClient(cfg Config) *Client {
	if cfg.DeviceName == "" {
		cfg.DeviceName = "Helovox"
	}
	return &Client{
		cfg:      cfg,
		messages: make(chan *domain.InboundMessage, 256),
	}
}

// Connect initializes the session store and connects. With no paired
// session the QR login flow runs and the code is logged for scanning;
// with an existing session the client reconnects silently.
func (c *Client) Connect(ctx context.Context) error {
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", c.cfg.DatabasePath),
		waLog.Noop)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}

	device, err := c.getDevice(ctx, container)
	if err != nil {
		return fmt.Errorf("getting device: %w", err)
	}

	store.SetOSInfo(c.cfg.DeviceName, [3]uint32{1, 0, 0})

	c.client = whatsmeow.NewClient(device, waLog.Noop)
	c.client.AddEventHandler(c.handleEvent)
	c.client.EnableAutoReconnect = true
	c.client.InitialAutoReconnect = true

	if c.client.Store.ID == nil {
		qrChan, err := c.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("getting QR channel: %w", err)
		}
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("connecting: %w", err)
		}
		go c.watchQR(qrChan)
		return nil
	}

	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	return nil
}

func (c *Client) getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

func (c *Client) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			slog.Info("Escaneie o QR code com o seu WhatsApp", "code", evt.Code)
		case "success":
			slog.Info("Device paired")
		case "timeout":
			slog.Warn("QR code expired before being scanned")
		default:
			slog.Warn("QR login event", "event", evt.Event)
		}
	}
}

func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Disconnect()
	}
	if c.closed.CompareAndSwap(false, true) {
		close(c.messages)
	}
}

// Messages is the inbound message stream. Closed on Disconnect.
func (c *Client) Messages() <-chan *domain.InboundMessage {
	return c.messages
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return &domain.TransportError{Op: "send_text", Err: fmt.Errorf("parsing JID %q: %w", chatID, err)}
	}

	_, err = c.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return &domain.TransportError{Op: "send_text", Err: err}
	}

	return nil
}

// SendVoice uploads mp3 audio and sends it as a voice note (PTT).
func (c *Client) SendVoice(ctx context.Context, chatID string, audio []byte) error {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return &domain.TransportError{Op: "send_voice", Err: fmt.Errorf("parsing JID %q: %w", chatID, err)}
	}

	uploaded, err := c.client.Upload(ctx, audio, whatsmeow.MediaAudio)
	if err != nil {
		return &domain.TransportError{Op: "send_voice", Err: fmt.Errorf("uploading audio: %w", err)}
	}

	_, err = c.client.SendMessage(ctx, jid, &waE2E.Message{
		AudioMessage: &waE2E.AudioMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
			Mimetype:      proto.String("audio/mpeg"),
			PTT:           proto.Bool(true),
		},
	})
	if err != nil {
		return &domain.TransportError{Op: "send_voice", Err: err}
	}

	return nil
}

// DownloadAttachment fetches and decrypts the media payload referenced by
// an inbound attachment.
func (c *Client) DownloadAttachment(ctx context.Context, att *domain.Attachment) ([]byte, error) {
	if att == nil {
		return nil, &domain.TransportError{Op: "download", Err: fmt.Errorf("message has no attachment")}
	}

	downloadable, ok := att.Ref.(whatsmeow.DownloadableMessage)
	if !ok {
		return nil, &domain.TransportError{Op: "download", Err: fmt.Errorf("attachment ref is %T, not downloadable", att.Ref)}
	}

	data, err := c.client.Download(ctx, downloadable)
	if err != nil {
		return nil, &domain.TransportError{Op: "download", Err: err}
	}

	return data, nil
}
