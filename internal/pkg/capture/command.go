package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/airenas/go-app/pkg/goapp"
)

// DefaultRate is the sample rate of captured audio
const DefaultRate = 16000

// CommandDevice captures microphone audio by piping raw s16le mono PCM
// from pw-record or arecord
type CommandDevice struct {
	command  []string
	rate     int
	stopWait time.Duration
	lookPath func(string) (string, error)
}

// NewCommandDevice creates the device. An empty command selects pw-record
// or arecord, a custom command must write raw s16le mono PCM at rate to stdout
func NewCommandDevice(command []string, rate int) *CommandDevice {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &CommandDevice{command: command, rate: rate, stopWait: 2 * time.Second, lookPath: exec.LookPath}
}

// Format returns wav over raw PCM
func (d *CommandDevice) Format() Format {
	return Format{ContentType: "audio/wav", Ext: ".wav", PCMRate: d.rate}
}

// Open starts the capture process and waits for the first audio bytes
func (d *CommandDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	args, err := d.args()
	if err != nil {
		return nil, err
	}
	goapp.Log.Debug().Strs("cmd", args).Msg("starting capture")
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = d.stopWait
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("can't create pipe: %w", err)
	}
	cmd.Stdout = pw
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, classify(err.Error(), err)
	}
	_ = pw.Close()

	br := bufio.NewReader(pr)
	if _, err := br.Peek(1); err != nil {
		_ = cmd.Wait()
		_ = pr.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(stderr.String(), err)
	}
	return &commandStream{cmd: cmd, r: br, pipe: pr}, nil
}

func (d *CommandDevice) args() ([]string, error) {
	if len(d.command) > 0 {
		if _, err := d.lookPath(d.command[0]); err != nil {
			return nil, fmt.Errorf("%w: %v", api.ErrDeviceUnavailable, err)
		}
		return d.command, nil
	}
	rate := strconv.Itoa(d.rate)
	if _, err := d.lookPath("pw-record"); err == nil {
		return []string{"pw-record", "--format=s16", "--rate=" + rate, "--channels=1", "-"}, nil
	}
	if _, err := d.lookPath("arecord"); err == nil {
		return []string{"arecord", "-f", "S16_LE", "-r", rate, "-c", "1", "-t", "raw", "-q", "-"}, nil
	}
	return nil, fmt.Errorf("%w: neither pw-record nor arecord found", api.ErrDeviceUnavailable)
}

// classify maps the capture process failure to the device errors
func classify(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	l := strings.ToLower(msg)
	if strings.Contains(l, "permission denied") || strings.Contains(l, "access denied") ||
		errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s", api.ErrPermissionDenied, msg)
	}
	return fmt.Errorf("%w: %s", api.ErrDeviceUnavailable, msg)
}

type commandStream struct {
	cmd  *exec.Cmd
	r    *bufio.Reader
	pipe *os.File
}

func (s *commandStream) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

// Close stops the process if it still runs and releases the pipe
func (s *commandStream) Close() error {
	_ = s.cmd.Process.Signal(os.Interrupt)
	err := s.cmd.Wait()
	if cErr := s.pipe.Close(); cErr != nil && err == nil {
		err = cErr
	}
	return err
}
