package capture

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	data    string
	format  Format
	openErr error

	lock   sync.Mutex
	opened int
	closed int
}

func (d *fakeDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.lock.Lock()
	d.opened++
	d.lock.Unlock()
	pr, pw := io.Pipe()
	go func() {
		if d.data != "" {
			_, _ = pw.Write([]byte(d.data))
		}
		<-ctx.Done()
		_ = pw.Close()
	}()
	return &fakeStream{PipeReader: pr, d: d}, nil
}

func (d *fakeDevice) Format() Format {
	return d.format
}

func (d *fakeDevice) closedCount() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.closed
}

type fakeStream struct {
	*io.PipeReader
	d *fakeDevice
}

func (s *fakeStream) Close() error {
	s.d.lock.Lock()
	s.d.closed++
	s.d.lock.Unlock()
	return s.PipeReader.Close()
}

func newTestRecorder(t *testing.T, d Device) *Recorder {
	t.Helper()
	r, err := NewRecorder(d)
	require.Nil(t, err)
	r.drainTimeout = time.Second
	return r
}

func waitBytes(t *testing.T, r *Recorder, n int) {
	t.Helper()
	ctx := test.Ctx(t)
	for r.Bytes() < n {
		select {
		case <-ctx.Done():
			require.Failf(t, "timeout", "expected %d bytes, got %d", n, r.Bytes())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewRecorder_Fail(t *testing.T) {
	_, err := NewRecorder(nil)
	assert.NotNil(t, err)
}

func TestRecorder_StartStop(t *testing.T) {
	d := &fakeDevice{data: "abc", format: Format{ContentType: "audio/webm", Ext: ".webm"}}
	r := newTestRecorder(t, d)
	require.Nil(t, r.Start(test.Ctx(t)))
	assert.True(t, r.Active())
	waitBytes(t, r, 3)

	b, err := r.Stop()
	require.Nil(t, err)
	assert.Equal(t, &Blob{Data: []byte("abc"), ContentType: "audio/webm", FileName: "recording.webm"}, b)
	assert.False(t, r.Active())
	assert.Equal(t, 1, d.closedCount())
}

func TestRecorder_OneActive(t *testing.T) {
	d := &fakeDevice{data: "abc"}
	r := newTestRecorder(t, d)
	require.Nil(t, r.Start(test.Ctx(t)))
	assert.ErrorIs(t, r.Start(test.Ctx(t)), ErrRecordingActive)
	r.Cancel()
	assert.Equal(t, 1, d.opened)
}

func TestRecorder_Empty(t *testing.T) {
	d := &fakeDevice{}
	r := newTestRecorder(t, d)
	require.Nil(t, r.Start(test.Ctx(t)))
	b, err := r.Stop()
	assert.Nil(t, b)
	assert.ErrorIs(t, err, api.ErrEmptyRecording)
	assert.Equal(t, 1, d.closedCount())
}

func TestRecorder_Cancel(t *testing.T) {
	d := &fakeDevice{data: "abc"}
	r := newTestRecorder(t, d)
	require.Nil(t, r.Start(test.Ctx(t)))
	waitBytes(t, r, 3)
	r.Cancel()
	assert.False(t, r.Active())
	assert.Equal(t, 0, r.Bytes())
	assert.Equal(t, 1, d.closedCount())
	r.Cancel()
	assert.Equal(t, 1, d.closedCount())
}

func TestRecorder_StopNotStarted(t *testing.T) {
	r := newTestRecorder(t, &fakeDevice{})
	_, err := r.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestRecorder_OpenFails(t *testing.T) {
	r := newTestRecorder(t, &fakeDevice{openErr: api.ErrPermissionDenied})
	err := r.Start(test.Ctx(t))
	assert.ErrorIs(t, err, api.ErrPermissionDenied)
	assert.False(t, r.Active())
}

func TestRecorder_NewAfterStop(t *testing.T) {
	d := &fakeDevice{data: "a"}
	r := newTestRecorder(t, d)
	for i := 0; i < 2; i++ {
		require.Nil(t, r.Start(test.Ctx(t)))
		waitBytes(t, r, 1)
		_, err := r.Stop()
		require.Nil(t, err)
	}
	assert.Equal(t, 2, d.closedCount())
}

func TestRecorder_WrapsPCM(t *testing.T) {
	d := &fakeDevice{data: "abcd", format: Format{ContentType: "audio/wav", Ext: ".wav", PCMRate: 16000}}
	r := newTestRecorder(t, d)
	require.Nil(t, r.Start(test.Ctx(t)))
	waitBytes(t, r, 4)
	b, err := r.Stop()
	require.Nil(t, err)
	require.Len(t, b.Data, 48)
	assert.Equal(t, "RIFF", string(b.Data[:4]))
	assert.Equal(t, "WAVE", string(b.Data[8:12]))
	assert.Equal(t, "abcd", string(b.Data[44:]))
	assert.Equal(t, "recording.wav", b.FileName)
}

func TestRecorder_ParentContextStops(t *testing.T) {
	d := &fakeDevice{data: "abc"}
	r := newTestRecorder(t, d)
	ctx, cf := context.WithCancel(test.Ctx(t))
	require.Nil(t, r.Start(ctx))
	waitBytes(t, r, 3)
	cf()
	b, err := r.Stop()
	require.Nil(t, err)
	assert.Equal(t, "abc", string(b.Data))
}

// openWaitDevice blocks in Open until ctx is done
type openWaitDevice struct {
	entered chan struct{}
}

func (d *openWaitDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	close(d.entered)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (d *openWaitDevice) Format() Format { return Format{} }

func TestRecorder_CancelWhileOpening(t *testing.T) {
	d := &openWaitDevice{entered: make(chan struct{})}
	r := newTestRecorder(t, d)
	errCh := make(chan error, 1)
	go func() { errCh <- r.Start(test.Ctx(t)) }()
	<-d.entered

	assert.False(t, r.Active())
	assert.ErrorIs(t, r.Start(test.Ctx(t)), ErrRecordingActive)
	r.Cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		require.Fail(t, "start did not return")
	}
	assert.False(t, r.Active())
}

func Test_wrapWav(t *testing.T) {
	res := wrapWav([]byte{1, 2}, 8000)
	require.Len(t, res, 46)
	assert.Equal(t, []byte{0x40, 0x1f, 0, 0}, res[24:28])
	assert.Equal(t, []byte{0x80, 0x3e, 0, 0}, res[28:32])
	assert.Equal(t, []byte{2, 0, 0, 0}, res[40:44])
}
