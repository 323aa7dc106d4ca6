package commands

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	sesame "github.com/ijub/sesame-go/sdk"
)

// ffmpegMicCapture reads raw s16le mono PCM from the default microphone
// via an ffmpeg subprocess.
type ffmpegMicCapture struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func newFFmpegMicCapture() (*ffmpegMicCapture, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.New("ffmpeg is required for mic capture (install ffmpeg and ensure it is in PATH)")
	}
	args, err := micFFmpegArgs(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	return &ffmpegMicCapture{cmd: cmd, stdout: stdout}, nil
}

func micFFmpegArgs(goos string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", ":0",
			"-ac", "1", "-ar", fmt.Sprintf("%d", sesame.ClientSampleRate),
			"-f", "s16le", "-",
		}, nil
	case "linux":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", fmt.Sprintf("%d", sesame.ClientSampleRate),
			"-f", "s16le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("mic capture is not implemented for %s; supported platforms: darwin, linux", goos)
	}
}

func (m *ffmpegMicCapture) Read(p []byte) (int, error) {
	if m == nil || m.stdout == nil {
		return 0, io.EOF
	}
	return m.stdout.Read(p)
}

func (m *ffmpegMicCapture) Close() error {
	if m == nil {
		return nil
	}
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_ = m.cmd.Wait()
	}
	return nil
}

// ffplayPCMPlayer streams raw s16le mono PCM to an ffplay subprocess.
type ffplayPCMPlayer struct {
	sampleRate int

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func newFFplayPCMPlayer(sampleRate int) (*ffplayPCMPlayer, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, errors.New("ffplay is required for playback (install ffmpeg/ffplay and ensure it is in PATH)")
	}
	player := &ffplayPCMPlayer{sampleRate: sampleRate}
	if err := player.startLocked(); err != nil {
		return nil, err
	}
	return player, nil
}

func (p *ffplayPCMPlayer) startLocked() error {
	p.cmd = exec.Command("ffplay",
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", p.sampleRate),
		"-ac", "1",
		"-i", "pipe:0",
	)
	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open ffplay stdin: %w", err)
	}
	p.cmd.Stdout = io.Discard
	p.cmd.Stderr = io.Discard
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	p.stdin = stdin
	return nil
}

func (p *ffplayPCMPlayer) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stdin == nil {
		return errors.New("ffplay stdin is not initialized")
	}
	_, err := p.stdin.Write(data)
	return err
}

func (p *ffplayPCMPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	p.stdin = nil
	return nil
}
