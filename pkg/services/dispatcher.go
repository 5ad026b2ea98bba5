package services

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/raulbalestra/helovox/pkg/domain"
	"github.com/raulbalestra/helovox/pkg/logger"
)

// User-facing strings. The bot speaks Brazilian Portuguese.
const (
	imageReceivedAck = `Imagem recebida. Digite "descrever" para obter a descrição.`

	apologyImage   = "Erro ao descrever a imagem."
	apologyAudio   = "Erro ao processar o áudio."
	apologyMessage = "Erro ao processar a mensagem."
)

type Classifier interface {
	Classify(msg *domain.InboundMessage, hasPendingImage bool) (domain.Category, error)
}

type PromptAssembler interface {
	BuildPrompt(ctx context.Context, chatID, userText string) (string, error)
}

type AIGateway interface {
	Generate(ctx context.Context, prompt string, opts domain.GenerateOptions) (string, error)
	DescribeImage(ctx context.Context, image []byte) (string, error)
	Transcribe(ctx context.Context, audioFilePath string) (string, error)
}

// SpeechSynthesizer is optional; a nil synthesizer disables voice replies.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type ConversationStore interface {
	Save(ctx context.Context, rec domain.ConversationRecord) error
}

type AudioTranscoder interface {
	ToCanonicalAudio(raw []byte) (string, error)
}

// Transport is the slice of the messaging client the dispatcher drives.
type Transport interface {
	SendText(ctx context.Context, chatID, text string) error
	SendVoice(ctx context.Context, chatID string, audio []byte) error
	DownloadAttachment(ctx context.Context, att *domain.Attachment) ([]byte, error)
}

// Dispatcher runs the per-message pipeline:
// classify → media processing → context assembly → generation → reply →
// persist. Each message runs to a terminal state in isolation; a failure
// never takes down the process or other in-flight pipelines.
type Dispatcher struct {
	classifier  Classifier
	assembler   PromptAssembler
	gateway     AIGateway
	store       ConversationStore
	transcoder  AudioTranscoder
	transport   Transport
	synthesizer SpeechSynthesizer

	genOpts     domain.GenerateOptions
	callTimeout time.Duration

	// pendingImages holds the last unprocessed image per chat, keyed by
	// chat ID. Last write wins: a newer image silently replaces an older
	// one that was never described. Two images arriving near-simultaneously
	// for the same chat race on which one a later confirm consumes; the map
	// itself is mutex-guarded, the window is accepted.
	mu            sync.Mutex
	pendingImages map[string][]byte
}

func NewDispatcher(
	classifier Classifier,
	assembler PromptAssembler,
	gateway AIGateway,
	store ConversationStore,
	transcoder AudioTranscoder,
	transport Transport,
	synthesizer SpeechSynthesizer,
	genOpts domain.GenerateOptions,
	callTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		classifier:    classifier,
		assembler:     assembler,
		gateway:       gateway,
		store:         store,
		transcoder:    transcoder,
		transport:     transport,
		synthesizer:   synthesizer,
		genOpts:       genOpts,
		callTimeout:   callTimeout,
		pendingImages: make(map[string][]byte),
	}
}

// Dispatch processes one inbound message to a terminal state. It never
// returns an error: failures are logged, answered with a fixed apology
// when a reply was owed, and never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *domain.InboundMessage) {
	ctx = logger.ContextWithChatID(ctx, msg.ChatID)

	category, err := d.classifier.Classify(msg, d.hasPendingImage(msg.ChatID))
	if err != nil {
		slog.ErrorContext(ctx, "Dropping unclassifiable message", logger.Err(err))
		return
	}

	slog.InfoContext(ctx, "Message classified",
		"category", category.String(), "sender", msg.Sender, "isGroup", msg.IsGroup)

	switch category {
	case domain.CategoryImageReceived:
		d.handleImageReceived(ctx, msg)
	case domain.CategoryImageConfirm:
		d.handleImageConfirm(ctx, msg)
	case domain.CategoryAudioReceived:
		d.handleAudio(ctx, msg)
	case domain.CategoryMentionTrigger, domain.CategoryDirectMessage:
		d.handleText(ctx, msg)
	case domain.CategoryPassiveLog:
		d.handlePassiveLog(ctx, msg)
	}
}

// handleImageReceived stashes the image as pending and acknowledges with
// the confirmation hint. No record is written yet: the image record is
// created when the description is produced.
func (d *Dispatcher) handleImageReceived(ctx context.Context, msg *domain.InboundMessage) {
	image, err := d.download(ctx, msg.Attachment)
	if err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "media_processing", logger.Err(err))
		return
	}

	d.setPendingImage(msg.ChatID, image)

	if err := d.sendText(ctx, msg.ChatID, imageReceivedAck); err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "replied", logger.Err(err))
	}
}

// handleImageConfirm consumes the pending image, describes it, replies
// with the description and archives it as the chat's image record.
func (d *Dispatcher) handleImageConfirm(ctx context.Context, msg *domain.InboundMessage) {
	image, ok := d.takePendingImage(msg.ChatID)
	if !ok {
		// Consumed by a concurrent confirm in the same chat.
		slog.WarnContext(ctx, "Confirm arrived with no pending image", logger.Err(domain.ErrNoPendingImage))
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	description, err := d.gateway.DescribeImage(callCtx, image)
	cancel()
	if err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "media_processing", logger.Err(err))
		d.apologize(ctx, msg.ChatID, apologyImage)
		d.persist(ctx, msg, domain.MediaKindImage, msg.Text, nil)
		return
	}

	if err := d.sendText(ctx, msg.ChatID, description); err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "replied", logger.Err(err))
	}
	d.persist(ctx, msg, domain.MediaKindImage, msg.Text, &description)
}

// handleAudio transcodes and transcribes the voice note, then answers it
// like a text message. When a synthesizer is configured the reply is also
// sent back as a voice note.
func (d *Dispatcher) handleAudio(ctx context.Context, msg *domain.InboundMessage) {
	audio, err := d.download(ctx, msg.Attachment)
	if err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "media_processing", logger.Err(err))
		d.apologize(ctx, msg.ChatID, apologyAudio)
		return
	}

	mp3Path, err := d.transcoder.ToCanonicalAudio(audio)
	if err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "media_processing", logger.Err(err))
		d.apologize(ctx, msg.ChatID, apologyAudio)
		return
	}
	defer os.Remove(mp3Path)

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	transcript, err := d.gateway.Transcribe(callCtx, mp3Path)
	cancel()
	if err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "media_processing", logger.Err(err))
		d.apologize(ctx, msg.ChatID, apologyAudio)
		return
	}

	reply, err := d.generateReply(ctx, msg.ChatID, transcript)
	if err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "generated", logger.Err(err))
		d.apologize(ctx, msg.ChatID, apologyAudio)
		d.persist(ctx, msg, domain.MediaKindAudio, transcript, nil)
		return
	}

	d.reply(ctx, msg.ChatID, reply, d.synthesizer != nil)
	d.persist(ctx, msg, domain.MediaKindAudio, transcript, &reply)
}

// handleText serves mentions and direct messages.
func (d *Dispatcher) handleText(ctx context.Context, msg *domain.InboundMessage) {
	reply, err := d.generateReply(ctx, msg.ChatID, msg.Text)
	if err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "generated", logger.Err(err))
		d.apologize(ctx, msg.ChatID, apologyMessage)
		d.persist(ctx, msg, domain.MediaKindText, msg.Text, nil)
		return
	}

	d.reply(ctx, msg.ChatID, reply, false)
	d.persist(ctx, msg, domain.MediaKindText, msg.Text, &reply)
}

// handlePassiveLog archives the message for future context. No reply.
func (d *Dispatcher) handlePassiveLog(ctx context.Context, msg *domain.InboundMessage) {
	d.persist(ctx, msg, domain.MediaKindText, msg.Text, nil)
}

// generateReply assembles the chat context and runs generation. Both
// assembly and gateway errors bubble to the caller's apology path.
func (d *Dispatcher) generateReply(ctx context.Context, chatID, userText string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	prompt, err := d.assembler.BuildPrompt(callCtx, chatID, userText)
	cancel()
	if err != nil {
		return "", err
	}

	callCtx, cancel = context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	return d.gateway.Generate(callCtx, prompt, d.genOpts)
}

// reply sends the text and, when asked and possible, a synthesized voice
// note. Voice synthesis failure downgrades to text-only.
func (d *Dispatcher) reply(ctx context.Context, chatID, text string, voice bool) {
	if err := d.sendText(ctx, chatID, text); err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "replied", logger.Err(err))
	}

	if !voice || d.synthesizer == nil {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	audio, err := d.synthesizer.Synthesize(callCtx, text)
	cancel()
	if err != nil {
		slog.WarnContext(ctx, "Voice synthesis failed, reply sent as text only", logger.Err(err))
		return
	}

	callCtx, cancel = context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	if err := d.transport.SendVoice(callCtx, chatID, audio); err != nil {
		slog.WarnContext(ctx, "Sending voice reply failed", logger.Err(err))
	}
}

// apologize is best-effort: its own failure is swallowed after logging.
func (d *Dispatcher) apologize(ctx context.Context, chatID, text string) {
	if err := d.sendText(ctx, chatID, text); err != nil {
		slog.WarnContext(ctx, "Sending apology failed", logger.Err(err))
	}
}

// persist appends the conversation record. Store errors are logged and do
// not undo an already delivered reply.
func (d *Dispatcher) persist(ctx context.Context, msg *domain.InboundMessage, kind domain.MediaKind, userMessage string, botReply *string) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	err := d.store.Save(callCtx, domain.ConversationRecord{
		ChatID:      msg.ChatID,
		Author:      msg.Sender,
		UserMessage: userMessage,
		MediaType:   kind,
		BotReply:    botReply,
		Timestamp:   time.Now(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "Pipeline failed", "stage", "logged", logger.Err(err))
		return
	}

	slog.DebugContext(ctx, "Conversation archived", "mediaType", string(kind), "replied", botReply != nil)
}

func (d *Dispatcher) sendText(ctx context.Context, chatID, text string) error {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	return d.transport.SendText(callCtx, chatID, text)
}

func (d *Dispatcher) download(ctx context.Context, att *domain.Attachment) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()
	return d.transport.DownloadAttachment(callCtx, att)
}

func (d *Dispatcher) hasPendingImage(chatID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pendingImages[chatID]
	return ok
}

func (d *Dispatcher) setPendingImage(chatID string, image []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pendingImages[chatID] = image
}

func (d *Dispatcher) takePendingImage(chatID string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	image, ok := d.pendingImages[chatID]
	if ok {
		delete(d.pendingImages, chatID)
	}
	return image, ok
}
