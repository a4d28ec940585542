package mocks

import (
	"context"
	"io"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/messages"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/stretchr/testify/mock"
)

// Filer is minio mock
type Filer struct{ mock.Mock }

// SaveFile func mock
func (m *Filer) SaveFile(ctx context.Context, name string, r io.Reader, fileSize int64) error {
	args := m.Called(ctx, name, r, fileSize)
	return args.Error(0)
}

// LoadFile func mock
func (m *Filer) LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error) {
	args := m.Called(ctx, fileName)
	return to[io.ReadSeekCloser](args.Get(0)), args.Error(1)
}

// Clean func mock
func (m *Filer) Clean(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// DB is postgres DB mock
type DB struct{ mock.Mock }

// InsertAudioJob func mock
func (m *DB) InsertAudioJob(ctx context.Context, job *persistence.AudioJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// LoadAudioJob func mock
func (m *DB) LoadAudioJob(ctx context.Context, id string) (*persistence.AudioJob, error) {
	args := m.Called(ctx, id)
	return to[*persistence.AudioJob](args.Get(0)), args.Error(1)
}

// UpdateAudioJob func mock
func (m *DB) UpdateAudioJob(ctx context.Context, job *persistence.AudioJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// InsertEvaluation func mock
func (m *DB) InsertEvaluation(ctx context.Context, e *persistence.Evaluation) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// LoadEvaluation func mock
func (m *DB) LoadEvaluation(ctx context.Context, id string) (*persistence.Evaluation, error) {
	args := m.Called(ctx, id)
	return to[*persistence.Evaluation](args.Get(0)), args.Error(1)
}

// LoadEvaluationByInterview func mock
func (m *DB) LoadEvaluationByInterview(ctx context.Context, interviewID string) (*persistence.Evaluation, error) {
	args := m.Called(ctx, interviewID)
	return to[*persistence.Evaluation](args.Get(0)), args.Error(1)
}

// UpdateEvaluation func mock
func (m *DB) UpdateEvaluation(ctx context.Context, e *persistence.Evaluation) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

// Sender is postgres queue mock
type Sender struct{ mock.Mock }

// SendMessage func mock
func (m *Sender) SendMessage(ctx context.Context, msg amessages.Message, opts *messages.Opts) error {
	args := m.Called(ctx, msg, opts)
	return args.Error(0)
}

// Transcriber is speech to text mock
type Transcriber struct{ mock.Mock }

// Transcribe func mock
func (m *Transcriber) Transcribe(ctx context.Context, r io.Reader) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

// Evaluator is interview scorer mock
type Evaluator struct{ mock.Mock }

// Evaluate func mock
func (m *Evaluator) Evaluate(ctx context.Context, interviewID, transcript string) (*api.Results, error) {
	args := m.Called(ctx, interviewID, transcript)
	return to[*api.Results](args.Get(0)), args.Error(1)
}

func to[T interface{}](val interface{}) T {
	if val == nil {
		var res T
		return res
	}
	return val.(T)
}
