package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/airenas/go-app/pkg/goapp"
)

// ErrRecordingActive is returned when a second recording is started
var ErrRecordingActive = errors.New("recording already active")

// ErrNotRecording is returned when there is nothing to stop
var ErrNotRecording = errors.New("not recording")

// Blob is a finished recording
type Blob struct {
	Data        []byte
	ContentType string
	FileName    string
}

// Format describes what a device produces
type Format struct {
	ContentType string
	Ext         string
	// PCMRate > 0 marks raw s16le mono samples, they are wrapped into wav on stop
	PCMRate int
}

// Device opens an audio input stream. The stream must end with io.EOF soon
// after ctx is canceled. Close releases the device.
type Device interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Format() Format
}

// Recorder keeps at most one active recording
type Recorder struct {
	device       Device
	drainTimeout time.Duration

	lock    sync.Mutex
	active  *recording
	opening context.CancelFunc
}

type recording struct {
	stream io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{}

	lock sync.Mutex
	data bytes.Buffer
	err  error
}

// NewRecorder creates recorder for the device
func NewRecorder(device Device) (*Recorder, error) {
	if device == nil {
		return nil, fmt.Errorf("no device")
	}
	return &Recorder{device: device, drainTimeout: 3 * time.Second}, nil
}

// Start acquires the device and buffers audio until Stop or Cancel. The
// recorder lock is not held while the device opens, Cancel aborts the opening
func (r *Recorder) Start(ctx context.Context) error {
	r.lock.Lock()
	if r.active != nil || r.opening != nil {
		r.lock.Unlock()
		return ErrRecordingActive
	}
	rCtx, cf := context.WithCancel(ctx)
	r.opening = cf
	r.lock.Unlock()

	stream, err := r.device.Open(rCtx)

	r.lock.Lock()
	defer r.lock.Unlock()
	r.opening = nil
	if err == nil && rCtx.Err() != nil {
		_ = stream.Close()
		err = rCtx.Err()
	}
	if err != nil {
		cf()
		return fmt.Errorf("can't start recording: %w", err)
	}
	rec := &recording{stream: stream, cancel: cf, done: make(chan struct{})}
	go rec.read()
	r.active = rec
	goapp.Log.Debug().Msg("recording started")
	return nil
}

// Stop finalizes the recording into one blob and releases the device
func (r *Recorder) Stop() (*Blob, error) {
	rec := r.take()
	if rec == nil {
		return nil, ErrNotRecording
	}
	data, err := r.finish(rec)
	goapp.Log.Debug().Int("bytes", len(data)).Msg("recording stopped")
	if len(data) == 0 {
		if err != nil {
			return nil, err
		}
		return nil, api.ErrEmptyRecording
	}
	f := r.device.Format()
	if f.PCMRate > 0 {
		data = wrapWav(data, f.PCMRate)
	}
	return &Blob{Data: data, ContentType: f.ContentType, FileName: "recording" + f.Ext}, nil
}

// Cancel discards the recording and releases the device
func (r *Recorder) Cancel() {
	if rec := r.take(); rec != nil {
		_, _ = r.finish(rec)
		goapp.Log.Debug().Msg("recording canceled")
	}
}

// Active reports whether a recording is in progress
func (r *Recorder) Active() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.active != nil
}

// Bytes returns the number of bytes captured by the active recording
func (r *Recorder) Bytes() int {
	r.lock.Lock()
	rec := r.active
	r.lock.Unlock()
	if rec == nil {
		return 0
	}
	rec.lock.Lock()
	defer rec.lock.Unlock()
	return rec.data.Len()
}

func (r *Recorder) take() *recording {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.opening != nil {
		r.opening()
	}
	res := r.active
	r.active = nil
	return res
}

func (r *Recorder) finish(rec *recording) ([]byte, error) {
	rec.cancel()
	select {
	case <-rec.done:
	case <-time.After(r.drainTimeout):
		goapp.Log.Warn().Msg("audio stream drain timeout")
	}
	if err := rec.stream.Close(); err != nil {
		goapp.Log.Debug().Err(err).Msg("close audio stream")
	}
	rec.lock.Lock()
	defer rec.lock.Unlock()
	return bytes.Clone(rec.data.Bytes()), rec.err
}

func (rec *recording) read() {
	defer close(rec.done)
	buf := make([]byte, 32*1024)
	for {
		n, err := rec.stream.Read(buf)
		if n > 0 {
			rec.lock.Lock()
			rec.data.Write(buf[:n])
			rec.lock.Unlock()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) && !errors.Is(err, os.ErrClosed) {
				goapp.Log.Warn().Err(err).Msg("audio read")
				rec.lock.Lock()
				rec.err = fmt.Errorf("%w: %v", api.ErrDeviceUnavailable, err)
				rec.lock.Unlock()
			}
			return
		}
	}
}
