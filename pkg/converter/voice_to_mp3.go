package converter

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/raulbalestra/helovox/pkg/domain"
)

const (
	voiceTempDir      = "tmp/voices"
	voiceTempFilePerm = 0o644
)

// VoiceToMP3 converts raw voice-note bytes (ogg/opus as delivered by the
// transport) into an mp3 file suitable for transcription. The caller owns
// the returned file and removes it when done.
type VoiceToMP3 struct{}

func (v *VoiceToMP3) ToCanonicalAudio(raw []byte) (string, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return "", &domain.TranscodeError{Err: fmt.Errorf("looking for `ffmpeg`: %w", err)}
	}

	if err := os.MkdirAll(voiceTempDir, os.ModePerm); err != nil {
		return "", &domain.TranscodeError{Err: fmt.Errorf("creating temp directory: %w", err)}
	}

	inputPath := filepath.Join(voiceTempDir, fmt.Sprintf("voice-%d.ogg", time.Now().UnixNano()))
	if err := os.WriteFile(inputPath, raw, voiceTempFilePerm); err != nil {
		return "", &domain.TranscodeError{Err: fmt.Errorf("saving voice file: %w", err)}
	}
	defer os.Remove(inputPath)

	outputPath := inputPath + ".mp3"

	slog.Info("Converting voice message to mp3", "inputPath", inputPath, "outputPath", outputPath)

	cmd := exec.Command("ffmpeg", "-y", "-i", inputPath, "-acodec", "libmp3lame", outputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", &domain.TranscodeError{Err: fmt.Errorf("running `ffmpeg`: %w: %s", err, out)}
	}

	return outputPath, nil
}
