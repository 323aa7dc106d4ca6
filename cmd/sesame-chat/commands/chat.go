package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ijub/sesame-go/internal/pcm"
	sesame "github.com/ijub/sesame-go/sdk"
)

const (
	// Mic gate: a frame counts as speech above this RMS amplitude. After
	// maxSilentChunks consecutive quiet frames the pump switches to zeroed
	// frames so the stream keeps flowing without feeding the agent
	// background noise.
	speechThresholdRMS = 500.0
	maxSilentChunks    = 50

	micChunkSamples = 1024
	playbackPoll    = 10 * time.Millisecond
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive voice conversation",
	Long: `Start an interactive voice conversation with a Sesame character.

Captures microphone audio through ffmpeg, streams it to the service,
and plays the character's replies through ffplay. Press Ctrl+C to hang
up.

Examples:
  sesame-chat chat
  sesame-chat chat --character Maya -v`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func runChat(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	char := resolvedCharacter()
	if err := checkCharacter(char); err != nil {
		return err
	}

	client := newClient()
	manager, _ := newTokenManager(client)

	printVerbose("resolving token")
	token, err := manager.GetValidToken(ctx, false)
	if err != nil {
		return err
	}
	session, err := client.Voice.NewSession(sesame.VoiceSessionConfig{
		IDToken:    token,
		Character:  char,
		ClientName: resolvedClientName(),
		OnConnect: func() {
			printSuccess("Connected to %s. Start talking, Ctrl+C hangs up.", char)
		},
		OnDisconnect: func() {
			printInfo("Call ended")
		},
	})
	if err != nil {
		return err
	}
	defer session.Close()

	printInfo("Calling %s...", char)
	if err := session.Connect(ctx); err != nil {
		return err
	}

	mic, err := newFFmpegMicCapture()
	if err != nil {
		return err
	}
	defer mic.Close()

	player, err := newFFplayPCMPlayer(session.ServerSampleRate())
	if err != nil {
		return err
	}
	defer player.Close()

	printVerbose("audio out: %d Hz pcm, %d bytes/s, codec %s",
		session.ServerSampleRate(), pcm.BytesPerSecond(session.ServerSampleRate()), session.AudioCodec())
	printVerbose("mic chunk: %d bytes (%s at %d Hz)",
		micChunkSamples*2, pcm.Duration(micChunkSamples*2, sesame.ClientSampleRate), sesame.ClientSampleRate)

	pumpsDone := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pumpMic(session, mic, pumpsDone)
	}()
	go func() {
		defer wg.Done()
		pumpPlayback(session, player, pumpsDone)
	}()

	select {
	case <-ctx.Done():
		printInfo("Hanging up...")
	case <-session.Done():
		if err := session.Err(); err != nil {
			printError("Connection lost: %v", err)
		}
	}

	close(pumpsDone)
	_ = mic.Close()
	session.Disconnect()
	if err := session.Close(); err != nil {
		return err
	}
	wg.Wait()
	return player.Close()
}

// checkCharacter rejects names the service does not serve before any
// network work happens.
func checkCharacter(name string) error {
	for _, c := range sesame.Characters {
		if c == name {
			return nil
		}
	}
	return fmt.Errorf("unknown character %q (choose from %s)", name, strings.Join(sesame.Characters, ", "))
}

// pumpMic streams mic frames to the session. Sustained silence is
// replaced with zeroed frames, matching the service's expectation of a
// continuous audio stream.
func pumpMic(session *sesame.VoiceSession, mic *ffmpegMicCapture, done <-chan struct{}) {
	chunk := make([]byte, micChunkSamples*2)
	silence := pcm.Silence(len(chunk))
	silentChunks := 0
	lastStats := time.Time{}

	for {
		select {
		case <-done:
			return
		case <-session.Done():
			return
		default:
		}

		if _, err := io.ReadFull(mic, chunk); err != nil {
			return
		}

		energy := pcm.RMS(chunk)
		if verbose && (lastStats.IsZero() || time.Since(lastStats) > 2*time.Second) {
			lastStats = time.Now()
			printVerbose("mic rms=%.0f peak=%d silent_chunks=%d", energy, pcm.Peak(chunk), silentChunks)
		}

		if energy > speechThresholdRMS {
			silentChunks = 0
			session.SendAudio(chunk)
			continue
		}
		silentChunks++
		if silentChunks >= maxSilentChunks {
			session.SendAudio(silence)
		} else {
			session.SendAudio(chunk)
		}
	}
}

// pumpPlayback feeds buffered agent audio to the speaker.
func pumpPlayback(session *sesame.VoiceSession, player *ffplayPCMPlayer, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		frame, ok := session.NextAudioChunk(playbackPoll)
		if !ok {
			select {
			case <-session.Done():
				return
			default:
			}
			continue
		}
		if err := player.Write(frame); err != nil {
			return
		}
	}
}
