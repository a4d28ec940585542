package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/vgarvardt/gue/v5"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/filer"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/messages"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/status"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils/handler"
)

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, *messages.Opts) error
}

// DB provides persistence functionality
type DB interface {
	LoadAudioJob(ctx context.Context, id string) (*persistence.AudioJob, error)
	UpdateAudioJob(ctx context.Context, job *persistence.AudioJob) error
	LoadEvaluation(ctx context.Context, id string) (*persistence.Evaluation, error)
	UpdateEvaluation(ctx context.Context, e *persistence.Evaluation) error
}

// Filer retrieves files
type Filer interface {
	LoadFile(ctx context.Context, fileName string) (io.ReadSeekCloser, error)
}

// Transcriber converts audio to text
type Transcriber interface {
	Transcribe(ctx context.Context, r io.Reader) (string, error)
}

// Evaluator scores a finished interview
type Evaluator interface {
	Evaluate(ctx context.Context, interviewID, transcript string) (*api.Results, error)
}

// ServiceData keeps data required for service work
type ServiceData struct {
	GueClient   *gue.Client
	WorkerCount int
	MsgSender   MsgSender
	DB          DB
	Filer       Filer
	Transcriber Transcriber
	Evaluator   Evaluator
	Testing     bool
}

// StartWorkerService starts the event queue listener service to listen for events
// returns channel for tracking if all jobs are finished
func StartWorkerService(ctx context.Context, data *ServiceData) (chan struct{}, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	goapp.Log.Info().Int("workers", data.WorkerCount).Msg("Starting listen for messages")
	if data.Testing {
		goapp.Log.Warn().Msg("SERVICE IN TEST MODE")
	}

	wm := gue.WorkMap{
		messages.Transcribe: handler.Create(data, handleTranscribe, handler.DefaultOpts[messages.AudioMessage]().
			WithFailure(transcribeFailure(data)).WithBackoff(handler.DefaultBackoffOrTest(data.Testing))),
		messages.Evaluate: handler.Create(data, handleEvaluate, handler.DefaultOpts[messages.EvaluateMessage]().
			WithFailure(evaluateFailure(data)).WithBackoff(handler.DefaultBackoffOrTest(data.Testing))),
	}

	pool, err := gue.NewWorkerPool(
		data.GueClient, wm, data.WorkerCount,
		gue.WithPoolQueue(messages.Work),
		gue.WithPoolLogger(utils.NewGueLoggerAdapter()),
		gue.WithPoolPollInterval(500*time.Millisecond),
		gue.WithPoolPollStrategy(gue.RunAtPollStrategy),
		gue.WithPoolID("dryrun-worker"),
	)
	if err != nil {
		return nil, fmt.Errorf("could not build gue workers pool: %w", err)
	}
	res := make(chan struct{}, 1)
	go func() {
		goapp.Log.Info().Msg("Starting workers")
		if err := pool.Run(ctx); err != nil {
			goapp.Log.Error().Err(err).Msg("pool error")
		}
		goapp.Log.Info().Msg("Pool workers finished")
		res <- struct{}{}
	}()
	return res, nil
}

func handleTranscribe(ctx context.Context, m *messages.AudioMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Msg("handling transcribe")
	job, err := data.DB.LoadAudioJob(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("can't load audio job: %w", err)
	}
	if job == nil {
		return utils.NewErrNonRetryable(fmt.Errorf("no audio job %s", m.ID))
	}
	if status.From(job.Status).Final() {
		goapp.Log.Info().Str("ID", m.ID).Str("status", job.Status).Msg("already processed, skip")
		return nil
	}
	file, err := data.Filer.LoadFile(ctx, job.FileName)
	if err != nil {
		if filer.IsNotFound(err) {
			return utils.NewErrNonRetryable(fmt.Errorf("no file %s: %w", job.FileName, err))
		}
		return fmt.Errorf("can't load file: %w", err)
	}
	defer file.Close()

	text, err := data.Transcriber.Transcribe(ctx, file)
	if err != nil {
		return fmt.Errorf("can't transcribe: %w", err)
	}
	goapp.Log.Info().Str("ID", m.ID).Int("len", len(text)).Msg("transcribed")
	job.Status = status.Done.String()
	job.Transcript = utils.ToSQLStr(text)
	job.Updated = time.Now()
	if err := data.DB.UpdateAudioJob(ctx, job); err != nil {
		return fmt.Errorf("can't save audio job: %w", err)
	}
	return notifyStatus(ctx, data, m.ID)
}

func transcribeFailure(data *ServiceData) func(context.Context, *messages.AudioMessage, error) error {
	return func(ctx context.Context, m *messages.AudioMessage, jobErr error) error {
		goapp.Log.Info().Str("ID", m.ID).Msg("handling transcribe failure")
		job, err := data.DB.LoadAudioJob(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("can't load audio job: %w", err)
		}
		if job == nil {
			goapp.Log.Warn().Str("ID", m.ID).Msg("no audio job")
			return nil
		}
		job.Status = status.Failed.String()
		job.Error = utils.ToSQLStr(jobErr.Error())
		job.Updated = time.Now()
		if err := data.DB.UpdateAudioJob(ctx, job); err != nil {
			return fmt.Errorf("can't save audio job: %w", err)
		}
		return notifyStatus(ctx, data, m.ID)
	}
}

func notifyStatus(ctx context.Context, data *ServiceData, id string) error {
	if err := data.MsgSender.SendMessage(ctx, messages.NewStatusMessage(id),
		messages.DefaultOpts(messages.StatusChange)); err != nil {
		return fmt.Errorf("can't send msg: %w", err)
	}
	return nil
}

func handleEvaluate(ctx context.Context, m *messages.EvaluateMessage, data *ServiceData) error {
	goapp.Log.Info().Str("ID", m.ID).Str("interviewID", m.InterviewID).Msg("handling evaluate")
	ev, err := data.DB.LoadEvaluation(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("can't load evaluation: %w", err)
	}
	if ev == nil {
		return utils.NewErrNonRetryable(fmt.Errorf("no evaluation %s", m.ID))
	}
	if status.From(ev.Status).Final() {
		goapp.Log.Info().Str("ID", m.ID).Str("status", ev.Status).Msg("already processed, skip")
		return nil
	}
	res, err := data.Evaluator.Evaluate(ctx, ev.InterviewID, ev.Transcript)
	if err != nil {
		return fmt.Errorf("can't evaluate: %w", err)
	}
	if err := res.Validate(); err != nil {
		return utils.NewErrNonRetryable(fmt.Errorf("wrong evaluation: %w", err))
	}
	if m.AudioID != "" {
		res.AudioURL = "/audio/" + url.PathEscape(m.AudioID)
	}
	ev.Payload, err = json.Marshal(res)
	if err != nil {
		return utils.NewErrNonRetryable(fmt.Errorf("can't marshal results: %w", err))
	}
	ev.Status = status.Done.String()
	ev.Updated = time.Now()
	if err := data.DB.UpdateEvaluation(ctx, ev); err != nil {
		return fmt.Errorf("can't save evaluation: %w", err)
	}
	goapp.Log.Info().Str("ID", m.ID).Msg("evaluation completed")
	return nil
}

func evaluateFailure(data *ServiceData) func(context.Context, *messages.EvaluateMessage, error) error {
	return func(ctx context.Context, m *messages.EvaluateMessage, jobErr error) error {
		goapp.Log.Info().Str("ID", m.ID).Msg("handling evaluate failure")
		ev, err := data.DB.LoadEvaluation(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("can't load evaluation: %w", err)
		}
		if ev == nil {
			goapp.Log.Warn().Str("ID", m.ID).Msg("no evaluation")
			return nil
		}
		ev.Status = status.Failed.String()
		ev.Error = utils.ToSQLStr(jobErr.Error())
		ev.Updated = time.Now()
		if err := data.DB.UpdateEvaluation(ctx, ev); err != nil {
			return fmt.Errorf("can't save evaluation: %w", err)
		}
		return nil
	}
}

func validate(data *ServiceData) error {
	if data.GueClient == nil {
		return fmt.Errorf("no gue client")
	}
	if data.WorkerCount < 1 {
		return fmt.Errorf("no worker count provided")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	if data.Filer == nil {
		return fmt.Errorf("no Filer")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.Transcriber == nil {
		return fmt.Errorf("no Transcriber")
	}
	if data.Evaluator == nil {
		return fmt.Errorf("no Evaluator")
	}
	return nil
}
