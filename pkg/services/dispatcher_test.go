package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raulbalestra/helovox/pkg/classifier"
	"github.com/raulbalestra/helovox/pkg/domain"
)

type fakeAssembler struct {
	prompt string
	err    error
	calls  int
}

func (f *fakeAssembler) BuildPrompt(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.prompt, f.err
}

type fakeGateway struct {
	generateText  string
	generateErr   error
	generateCalls int

	describeText  string
	describeErr   error
	describeCalls int

	transcribeText  string
	transcribeErr   error
	transcribeCalls int
}

func (f *fakeGateway) Generate(_ context.Context, _ string, _ domain.GenerateOptions) (string, error) {
	f.generateCalls++
	return f.generateText, f.generateErr
}

func (f *fakeGateway) DescribeImage(_ context.Context, _ []byte) (string, error) {
	f.describeCalls++
	return f.describeText, f.describeErr
}

func (f *fakeGateway) Transcribe(_ context.Context, _ string) (string, error) {
	f.transcribeCalls++
	return f.transcribeText, f.transcribeErr
}

type fakeStore struct {
	records []domain.ConversationRecord
	err     error
}

func (f *fakeStore) Save(_ context.Context, rec domain.ConversationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type fakeTransport struct {
	texts  []string
	voices int

	sendErr      error
	downloadData []byte
	downloadErr  error
}

func (f *fakeTransport) SendText(_ context.Context, _, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) SendVoice(_ context.Context, _ string, _ []byte) error {
	f.voices++
	return nil
}

func (f *fakeTransport) DownloadAttachment(_ context.Context, _ *domain.Attachment) ([]byte, error) {
	return f.downloadData, f.downloadErr
}

type fakeTranscoder struct {
	path string
	err  error
}

func (f *fakeTranscoder) ToCanonicalAudio(_ []byte) (string, error) {
	return f.path, f.err
}

type fakeSynthesizer struct {
	audio []byte
	err   error
}

func (f *fakeSynthesizer) Synthesize(_ context.Context, _ string) ([]byte, error) {
	return f.audio, f.err
}

type testEnv struct {
	dispatcher *Dispatcher
	assembler  *fakeAssembler
	gateway    *fakeGateway
	store      *fakeStore
	transport  *fakeTransport
}

func newTestEnv(synthesizer SpeechSynthesizer) *testEnv {
	env := &testEnv{
		assembler: &fakeAssembler{prompt: "prompt"},
		gateway: &fakeGateway{
			generateText:   "tudo ótimo por aqui!",
			describeText:   "um gato laranja dormindo no sofá",
			transcribeText: "qual a previsão do tempo?",
		},
		store: &fakeStore{},
		transport: &fakeTransport{
			downloadData: []byte("payload"),
		},
	}

	env.dispatcher = NewDispatcher(
		classifier.New("helovox", "descrever"),
		env.assembler,
		env.gateway,
		env.store,
		&fakeTranscoder{path: "voice.mp3"},
		env.transport,
		synthesizer,
		domain.GenerateOptions{MaxTokens: 3000, Temperature: 0.5},
		time.Second,
	)

	return env
}

func TestDispatchMentionRepliesAndArchives(t *testing.T) {
	env := newTestEnv(nil)

	env.dispatcher.Dispatch(context.Background(), &domain.InboundMessage{
		ChatID:  "group@g.us",
		Sender:  "ana@s.whatsapp.net",
		Text:    "Oi Helovox, tudo bem?",
		IsGroup: true,
	})

	if len(env.transport.texts) != 1 || env.transport.texts[0] != "tudo ótimo por aqui!" {
		t.Fatalf("expected generated reply to be sent, got %v", env.transport.texts)
	}
	if len(env.store.records) != 1 {
		t.Fatalf("expected one record, got %d", len(env.store.records))
	}

	rec := env.store.records[0]
	if rec.MediaType != domain.MediaKindText || rec.UserMessage != "Oi Helovox, tudo bem?" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.BotReply == nil || *rec.BotReply != "tudo ótimo por aqui!" {
		t.Errorf("expected bot reply on record, got %v", rec.BotReply)
	}
	if rec.Author != "ana@s.whatsapp.net" {
		t.Errorf("unexpected author: %s", rec.Author)
	}
}

func TestDispatchImageThenConfirm(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	env.dispatcher.Dispatch(ctx, &domain.InboundMessage{
		ChatID:     "group@g.us",
		Sender:     "ana@s.whatsapp.net",
		IsGroup:    true,
		Attachment: &domain.Attachment{Kind: domain.MediaKindImage},
	})

	if len(env.transport.texts) != 1 || env.transport.texts[0] != imageReceivedAck {
		t.Fatalf("expected acknowledgment, got %v", env.transport.texts)
	}
	if env.gateway.describeCalls != 0 {
		t.Fatalf("image must not be described before confirmation")
	}
	if len(env.store.records) != 0 {
		t.Fatalf("no record expected before confirmation, got %d", len(env.store.records))
	}

	env.dispatcher.Dispatch(ctx, &domain.InboundMessage{
		ChatID:  "group@g.us",
		Sender:  "ana@s.whatsapp.net",
		Text:    "descrever",
		IsGroup: true,
	})

	if env.gateway.describeCalls != 1 {
		t.Fatalf("expected exactly one describe call, got %d", env.gateway.describeCalls)
	}
	if len(env.store.records) != 1 {
		t.Fatalf("expected one record after confirmation, got %d", len(env.store.records))
	}

	rec := env.store.records[0]
	if rec.MediaType != domain.MediaKindImage {
		t.Errorf("expected image record, got %s", rec.MediaType)
	}
	if rec.BotReply == nil || *rec.BotReply != "um gato laranja dormindo no sofá" {
		t.Errorf("expected description as bot reply, got %v", rec.BotReply)
	}

	// The pending image was consumed: repeating the keyword is archived
	// passively and triggers no second description.
	env.dispatcher.Dispatch(ctx, &domain.InboundMessage{
		ChatID:  "group@g.us",
		Sender:  "ana@s.whatsapp.net",
		Text:    "descrever",
		IsGroup: true,
	})

	if env.gateway.describeCalls != 1 {
		t.Errorf("pending image described twice")
	}
	if len(env.store.records) != 2 || env.store.records[1].BotReply != nil {
		t.Errorf("expected passive record with no reply, got %+v", env.store.records)
	}
}

func TestDispatchNewImageReplacesPending(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	for range 2 {
		env.dispatcher.Dispatch(ctx, &domain.InboundMessage{
			ChatID:     "group@g.us",
			Sender:     "ana@s.whatsapp.net",
			IsGroup:    true,
			Attachment: &domain.Attachment{Kind: domain.MediaKindImage},
		})
	}

	env.dispatcher.Dispatch(ctx, &domain.InboundMessage{
		ChatID:  "group@g.us",
		Sender:  "ana@s.whatsapp.net",
		Text:    "descrever",
		IsGroup: true,
	})

	// Last write wins: two images, one pending slot, one description.
	if env.gateway.describeCalls != 1 {
		t.Errorf("expected one describe call, got %d", env.gateway.describeCalls)
	}
}

func TestDispatchAudioGenerateFailure(t *testing.T) {
	env := newTestEnv(nil)
	env.gateway.generateErr = &domain.GatewayError{Op: "generate", Err: errors.New("rate limited")}

	env.dispatcher.Dispatch(context.Background(), &domain.InboundMessage{
		ChatID:     "ana@s.whatsapp.net",
		Sender:     "ana@s.whatsapp.net",
		Attachment: &domain.Attachment{Kind: domain.MediaKindAudio},
	})

	if env.gateway.transcribeCalls != 1 {
		t.Fatalf("expected transcription to run, got %d calls", env.gateway.transcribeCalls)
	}
	if len(env.transport.texts) != 1 || env.transport.texts[0] != apologyAudio {
		t.Fatalf("expected apology, got %v", env.transport.texts)
	}

	// The transcript is never silently dropped: it is archived without a
	// reply.
	if len(env.store.records) != 1 {
		t.Fatalf("expected one record, got %d", len(env.store.records))
	}
	rec := env.store.records[0]
	if rec.MediaType != domain.MediaKindAudio || rec.UserMessage != "qual a previsão do tempo?" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.BotReply != nil {
		t.Errorf("expected no bot reply on failed generation, got %v", rec.BotReply)
	}
}

func TestDispatchAudioVoiceReply(t *testing.T) {
	env := newTestEnv(&fakeSynthesizer{audio: []byte("mp3")})

	env.dispatcher.Dispatch(context.Background(), &domain.InboundMessage{
		ChatID:     "ana@s.whatsapp.net",
		Sender:     "ana@s.whatsapp.net",
		Attachment: &domain.Attachment{Kind: domain.MediaKindAudio},
	})

	if len(env.transport.texts) != 1 {
		t.Fatalf("expected text reply, got %v", env.transport.texts)
	}
	if env.transport.voices != 1 {
		t.Errorf("expected voice reply alongside text, got %d", env.transport.voices)
	}
}

func TestDispatchVoiceSynthesisFailureDowngradesToText(t *testing.T) {
	env := newTestEnv(&fakeSynthesizer{err: &domain.GatewayError{Op: "synthesize", Err: errors.New("quota")}})

	env.dispatcher.Dispatch(context.Background(), &domain.InboundMessage{
		ChatID:     "ana@s.whatsapp.net",
		Sender:     "ana@s.whatsapp.net",
		Attachment: &domain.Attachment{Kind: domain.MediaKindAudio},
	})

	if len(env.transport.texts) != 1 {
		t.Fatalf("expected text reply, got %v", env.transport.texts)
	}
	if env.transport.voices != 0 {
		t.Errorf("expected no voice reply, got %d", env.transport.voices)
	}
	if len(env.store.records) != 1 || env.store.records[0].BotReply == nil {
		t.Errorf("expected archived reply despite synthesis failure")
	}
}

func TestDispatchPassiveLog(t *testing.T) {
	env := newTestEnv(nil)

	env.dispatcher.Dispatch(context.Background(), &domain.InboundMessage{
		ChatID:  "group@g.us",
		Sender:  "bia@s.whatsapp.net",
		Text:    "bom dia pessoal",
		IsGroup: true,
	})

	if len(env.transport.texts) != 0 {
		t.Errorf("passive message must not be answered, got %v", env.transport.texts)
	}
	if env.gateway.generateCalls != 0 {
		t.Errorf("passive message must not reach the gateway")
	}
	if len(env.store.records) != 1 || env.store.records[0].BotReply != nil {
		t.Fatalf("expected archived record without reply, got %+v", env.store.records)
	}
}

func TestDispatchStoreFailureDoesNotBlockReply(t *testing.T) {
	env := newTestEnv(nil)
	env.store.err = &domain.StoreError{Op: "save", Err: errors.New("connection refused")}

	env.dispatcher.Dispatch(context.Background(), &domain.InboundMessage{
		ChatID: "ana@s.whatsapp.net",
		Sender: "ana@s.whatsapp.net",
		Text:   "bom dia",
	})

	if len(env.transport.texts) != 1 || env.transport.texts[0] != "tudo ótimo por aqui!" {
		t.Errorf("reply must be delivered before the store failure is noticed, got %v", env.transport.texts)
	}
}

func TestDispatchInvalidMessageDropped(t *testing.T) {
	env := newTestEnv(nil)

	env.dispatcher.Dispatch(context.Background(), &domain.InboundMessage{Text: "oi"})

	if len(env.transport.texts) != 0 || len(env.store.records) != 0 || env.gateway.generateCalls != 0 {
		t.Errorf("unclassifiable message must have no side effects")
	}
}

func TestDispatchAssemblyFailure(t *testing.T) {
	env := newTestEnv(nil)
	env.assembler.err = &domain.StoreError{Op: "recent", Err: errors.New("timeout")}

	env.dispatcher.Dispatch(context.Background(), &domain.InboundMessage{
		ChatID: "ana@s.whatsapp.net",
		Sender: "ana@s.whatsapp.net",
		Text:   "bom dia",
	})

	if len(env.transport.texts) != 1 || env.transport.texts[0] != apologyMessage {
		t.Errorf("expected apology, got %v", env.transport.texts)
	}
	if env.gateway.generateCalls != 0 {
		t.Errorf("generation must not run after assembly failure")
	}

	// The user message is still archived, without a reply.
	if len(env.store.records) != 1 || env.store.records[0].BotReply != nil {
		t.Errorf("expected archived record without reply, got %+v", env.store.records)
	}
}
