package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils"
)

// FileDevice streams a prerecorded audio file instead of a microphone
type FileDevice struct {
	path string
}

// NewFileDevice creates the device, the file extension must be a supported audio one
func NewFileDevice(path string) (*FileDevice, error) {
	if !utils.SupportAudioExt(strings.ToLower(filepath.Ext(path))) {
		return nil, fmt.Errorf("not supported audio file '%s'", path)
	}
	return &FileDevice{path: path}, nil
}

// Open opens the file
func (d *FileDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(d.path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %v", api.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("%w: %v", api.ErrDeviceUnavailable, err)
	}
	return &ctxReader{ctx: ctx, f: f}, nil
}

// Format returns the file format
func (d *FileDevice) Format() Format {
	return Format{ContentType: utils.ContentType(d.path), Ext: strings.ToLower(filepath.Ext(d.path))}
}

// ctxReader ends the stream once ctx is canceled
type ctxReader struct {
	ctx context.Context
	f   *os.File
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if r.ctx.Err() != nil {
		return 0, io.EOF
	}
	return r.f.Read(p)
}

func (r *ctxReader) Close() error {
	return r.f.Close()
}
