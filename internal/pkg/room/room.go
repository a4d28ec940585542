package room

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/capture"
	"github.com/airenas/go-app/pkg/goapp"
)

// State of the interview room
type State int

const (
	// NotStarted - interview is loaded
	NotStarted State = iota
	// Started - user started the interview
	Started
	// AwaitingUserTurn - the interviewer waits for an answer
	AwaitingUserTurn
	// AwaitingFollowup - the answer is sent, waiting for the interviewer
	AwaitingFollowup
	// Ended is terminal
	Ended
)

var stateNames = [...]string{"NotStarted", "Started", "AwaitingUserTurn", "AwaitingFollowup", "Ended"}

func (s State) String() string {
	if s < NotStarted || s > Ended {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

const (
	// DefaultFollowupDelay emulates spoken delivery of a follow-up
	DefaultFollowupDelay = 800 * time.Millisecond
	// DefaultFallbackDelay before the local acknowledgement
	DefaultFallbackDelay = 900 * time.Millisecond
	// DefaultFallbackText is shown when the interviewer is unavailable
	DefaultFallbackText = "Thanks. Briefly quantify your impact next time."
	// TranscriptNotice is added when the results carry the server transcript
	TranscriptNotice = "Server transcript available, see the results panel."
)

// ErrWrongState is returned when the operation is not allowed in the current state
var ErrWrongState = errors.New("wrong room state")

// ErrClosed is returned after Close
var ErrClosed = errors.New("room closed")

// InterviewClient exchanges turns with the interviewer
type InterviewClient interface {
	CompleteTurn(ctx context.Context, interviewID, turnID string, in *api.TurnRequest) (*api.Turn, error)
	Finish(ctx context.Context, interviewID string) (*api.Finish, error)
}

// Transcriber turns a recording into text
type Transcriber interface {
	Transcribe(ctx context.Context, blob *capture.Blob) (*Answer, error)
}

// ResultsWaiter waits for interview results
type ResultsWaiter interface {
	Poll(ctx context.Context, interviewID string) (*api.Results, error)
}

// Recorder captures user audio
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (*capture.Blob, error)
	Cancel()
	Active() bool
}

// Deps are the room collaborators
type Deps struct {
	Client      InterviewClient
	Transcriber Transcriber
	Results     ResultsWaiter
	Recorder    Recorder
	Clock       Clock
}

// Options tune the room delays
type Options struct {
	FollowupDelay time.Duration
	FallbackDelay time.Duration
	FallbackText  string
}

// DefaultOptions returns the default delays
func DefaultOptions() Options {
	return Options{FollowupDelay: DefaultFollowupDelay, FallbackDelay: DefaultFallbackDelay, FallbackText: DefaultFallbackText}
}

// Snapshot is a copy of the room view state
type Snapshot struct {
	InterviewID     string
	State           State
	TurnID          string
	Messages        []api.Message
	StatusText      string
	Recording       bool
	Elapsed         time.Duration
	Remaining       time.Duration
	ProcessingJobID string
	ResultsReady    bool
	Results         *api.Results
}

// Room drives one interview: recording, transcription, turns, finish and results
type Room struct {
	interview *api.Interview
	deps      Deps
	opts      Options

	ctx    context.Context
	cancel context.CancelFunc

	// turn serializes turn exchange and finish, turns are never pipelined
	turn sync.Mutex

	lock            sync.Mutex
	state           State
	turnID          string
	messages        []api.Message
	statusText      string
	startedAt       time.Time
	processingJobID string
	finishing       bool
	resultsReady    bool
	results         *api.Results
	stopRec         context.CancelFunc
	closed          bool
	listener        func(Snapshot)
	msgSeq          int
	ops             map[int]context.CancelFunc
	opSeq           int
}

// NewRoom creates a room for the interview
func NewRoom(interview *api.Interview, deps Deps, opts Options) (*Room, error) {
	if interview == nil || interview.InterviewID == "" {
		return nil, fmt.Errorf("no interview")
	}
	if deps.Client == nil {
		return nil, fmt.Errorf("no interview client")
	}
	if deps.Transcriber == nil {
		return nil, fmt.Errorf("no transcriber")
	}
	if deps.Results == nil {
		return nil, fmt.Errorf("no results waiter")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("no recorder")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("no clock")
	}
	if opts.FallbackText == "" {
		opts.FallbackText = DefaultFallbackText
	}
	res := &Room{interview: interview, deps: deps, opts: opts, state: NotStarted, ops: map[int]context.CancelFunc{}}
	res.ctx, res.cancel = context.WithCancel(context.Background())
	res.turnID = interview.CurrentTurnID
	if res.turnID == "" {
		res.turnID = "turn_1"
	}
	if q := interview.FirstQuestion; q != nil && strings.TrimSpace(q.Text) != "" {
		res.addMessageNoSync(api.SpeakerAI, q.Text)
	}
	return res, nil
}

// OnChange sets a listener called after every state change
func (r *Room) OnChange(f func(Snapshot)) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.listener = f
}

// Start starts the interview clock
func (r *Room) Start() error {
	return r.mutate(r.ctx, func() error {
		if r.state != NotStarted {
			return fmt.Errorf("%w: can't start in %s", ErrWrongState, r.state)
		}
		r.state = Started
		r.startedAt = r.deps.Clock.Now()
		if len(r.messages) > 0 {
			r.state = AwaitingUserTurn
		}
		return nil
	})
}

// StartRecording acquires the microphone. The device opens outside the room
// lock, ctx or Close abort the opening
func (r *Room) StartRecording(ctx context.Context) error {
	ctx, cf := r.opContext(ctx)
	defer cf()
	if err := r.mutate(ctx, func() error {
		return r.canRecordNoSync()
	}); err != nil {
		return err
	}

	recCtx, recCf := context.WithCancel(r.ctx)
	stop := context.AfterFunc(ctx, recCf)
	err := r.deps.Recorder.Start(recCtx)
	if !stop() && err == nil {
		r.deps.Recorder.Cancel()
		err = ctx.Err()
	}
	if err != nil {
		recCf()
		_ = r.mutate(ctx, func() error {
			r.statusText = api.UserMessage(err)
			return nil
		})
		return err
	}
	if err := r.mutate(ctx, func() error {
		if err := r.canRecordNoSync(); err != nil {
			return err
		}
		r.stopRec = recCf
		r.statusText = "Recording..."
		return nil
	}); err != nil {
		r.deps.Recorder.Cancel()
		recCf()
		return err
	}
	return nil
}

func (r *Room) canRecordNoSync() error {
	if r.state != Started && r.state != AwaitingUserTurn {
		return fmt.Errorf("%w: can't record in %s", ErrWrongState, r.state)
	}
	return nil
}

// releaseRecordingNoSync drops the recording context
func (r *Room) releaseRecordingNoSync() {
	if r.stopRec != nil {
		r.stopRec()
		r.stopRec = nil
	}
}

// CancelRecording drops the current recording
func (r *Room) CancelRecording() {
	r.deps.Recorder.Cancel()
	_ = r.mutate(r.ctx, func() error {
		r.releaseRecordingNoSync()
		r.statusText = ""
		return nil
	})
}

// StopRecording finishes the recording, transcribes it and completes the turn
func (r *Room) StopRecording(ctx context.Context) error {
	ctx, cf := r.opContext(ctx)
	defer cf()

	blob, err := r.deps.Recorder.Stop()
	r.lock.Lock()
	r.releaseRecordingNoSync()
	r.lock.Unlock()
	if err != nil {
		_ = r.mutate(ctx, func() error {
			r.statusText = api.UserMessage(err)
			return nil
		})
		return err
	}
	if err := r.mutate(ctx, func() error {
		r.statusText = "Uploading..."
		return nil
	}); err != nil {
		return err
	}
	answer, err := r.deps.Transcriber.Transcribe(ctx, blob)
	if err != nil {
		_ = r.mutate(ctx, func() error {
			r.statusText = api.UserMessage(err)
			return nil
		})
		return err
	}
	return r.completeTurn(ctx, answer.Text, answer.AudioID)
}

// CompleteTurn sends the user answer and waits for the interviewer
func (r *Room) CompleteTurn(ctx context.Context, transcript string) error {
	ctx, cf := r.opContext(ctx)
	defer cf()
	return r.completeTurn(ctx, transcript, "")
}

func (r *Room) completeTurn(ctx context.Context, transcript, audioID string) error {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return api.ErrNoTranscript
	}
	r.turn.Lock()
	defer r.turn.Unlock()

	var turnID string
	if err := r.mutate(ctx, func() error {
		if r.state != Started && r.state != AwaitingUserTurn {
			return fmt.Errorf("%w: can't answer in %s", ErrWrongState, r.state)
		}
		r.addMessageNoSync(api.SpeakerUser, transcript)
		r.state = AwaitingFollowup
		r.statusText = ""
		turnID = r.turnID
		return nil
	}); err != nil {
		return err
	}

	resp, err := r.deps.Client.CompleteTurn(ctx, r.interview.InterviewID, turnID,
		&api.TurnRequest{Transcript: transcript, AudioID: audioID})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		goapp.Log.Warn().Err(err).Str("turn", turnID).Msg("complete turn failed, use fallback")
		if err := wait(ctx, r.deps.Clock, r.opts.FallbackDelay); err != nil {
			return err
		}
		return r.mutate(ctx, func() error {
			r.addMessageNoSync(api.SpeakerAI, r.opts.FallbackText)
			if r.state == AwaitingFollowup {
				r.state = AwaitingUserTurn
			}
			return nil
		})
	}

	if resp.Followup != nil {
		if err := wait(ctx, r.deps.Clock, r.opts.FollowupDelay); err != nil {
			return err
		}
		if err := r.mutate(ctx, func() error {
			r.addMessageNoSync(api.SpeakerAI, resp.Followup.Text)
			if resp.NextTurnID != "" {
				r.turnID = resp.NextTurnID
			}
			if r.state == AwaitingFollowup && !resp.End {
				r.state = AwaitingUserTurn
			}
			return nil
		}); err != nil {
			return err
		}
	}
	if resp.End {
		_, err := r.finish(ctx)
		return err
	}
	return nil
}

// Finish ends the interview and waits for the results. After success a
// second call returns the known results without new requests
func (r *Room) Finish(ctx context.Context) (*api.Results, error) {
	ctx, cf := r.opContext(ctx)
	defer cf()
	r.turn.Lock()
	defer r.turn.Unlock()
	return r.finish(ctx)
}

func (r *Room) finish(ctx context.Context) (*api.Results, error) {
	var (
		done    bool
		results *api.Results
	)
	if err := r.mutate(ctx, func() error {
		if r.finishing {
			done, results = true, r.results
			return nil
		}
		r.finishing = true
		r.state = Ended
		if r.deps.Recorder.Active() {
			r.deps.Recorder.Cancel()
		}
		r.releaseRecordingNoSync()
		r.statusText = "Finishing..."
		return nil
	}); err != nil {
		return nil, err
	}
	if done {
		if results == nil {
			return nil, fmt.Errorf("%w: results are not available", api.ErrResultsTimeout)
		}
		return results, nil
	}

	fin, err := r.deps.Client.Finish(ctx, r.interview.InterviewID)
	if err != nil {
		r.finishFailed(ctx, err)
		return nil, err
	}
	if err := r.mutate(ctx, func() error {
		r.processingJobID = fin.ProcessingJobID
		r.statusText = "Processing results..."
		return nil
	}); err != nil {
		return nil, err
	}

	res, err := r.deps.Results.Poll(ctx, r.interview.InterviewID)
	if err != nil {
		r.finishFailed(ctx, err)
		return nil, err
	}
	if err := r.mutate(ctx, func() error {
		r.resultsReady = true
		r.results = res
		r.statusText = ""
		if res.Transcript != "" {
			r.addMessageNoSync(api.SpeakerSystem, TranscriptNotice)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// finishFailed allows to request the results again
func (r *Room) finishFailed(ctx context.Context, err error) {
	_ = r.mutate(ctx, func() error {
		r.finishing = false
		r.statusText = api.UserMessage(err)
		return nil
	})
}

// WatchDeadline finishes the interview when max duration elapses. It returns
// when ctx is done, the room is closed or the interview is finished
func (r *Room) WatchDeadline(ctx context.Context) error {
	ctx, cf := r.opContext(ctx)
	defer cf()
	d := r.Snapshot().Remaining
	if d <= 0 && r.interview.MaxDuration() <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := wait(ctx, r.deps.Clock, d); err != nil {
		return err
	}
	if r.State() == Ended {
		return nil
	}
	goapp.Log.Info().Str("ID", r.interview.InterviewID).Msg("max duration elapsed")
	_ = r.mutate(ctx, func() error {
		r.addMessageNoSync(api.SpeakerSystem, "Time is up.")
		return nil
	})
	_, err := r.Finish(ctx)
	return err
}

// Close aborts running operations and releases the microphone. Nothing is
// changed in the room after Close
func (r *Room) Close() {
	r.lock.Lock()
	r.closed = true
	for _, cf := range r.ops {
		cf()
	}
	r.lock.Unlock()
	r.cancel()
	r.deps.Recorder.Cancel()
}

// State returns the current state
func (r *Room) State() State {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}

// TurnID returns the current turn id
func (r *Room) TurnID() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.turnID
}

// ResultsReady reports whether results are fetched
func (r *Room) ResultsReady() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.resultsReady
}

// Snapshot returns a copy of the room state
func (r *Room) Snapshot() Snapshot {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.snapshotNoSync()
}

func (r *Room) snapshotNoSync() Snapshot {
	res := Snapshot{InterviewID: r.interview.InterviewID, State: r.state, TurnID: r.turnID,
		StatusText: r.statusText, Recording: r.deps.Recorder.Active(), ProcessingJobID: r.processingJobID,
		ResultsReady: r.resultsReady, Results: r.results}
	res.Messages = append([]api.Message(nil), r.messages...)
	if !r.startedAt.IsZero() {
		res.Elapsed = r.deps.Clock.Now().Sub(r.startedAt)
		res.Remaining = r.interview.MaxDuration() - res.Elapsed
		if res.Remaining < 0 {
			res.Remaining = 0
		}
	} else {
		res.Remaining = r.interview.MaxDuration()
	}
	return res
}

// mutate runs f under the lock unless the room is closed or ctx is done,
// then notifies the listener
func (r *Room) mutate(ctx context.Context, f func() error) error {
	r.lock.Lock()
	if r.closed {
		r.lock.Unlock()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		r.lock.Unlock()
		return err
	}
	err := f()
	l := r.listener
	var s Snapshot
	if l != nil {
		s = r.snapshotNoSync()
	}
	r.lock.Unlock()
	if l != nil {
		l(s)
	}
	return err
}

func (r *Room) addMessageNoSync(speaker api.Speaker, text string) {
	r.msgSeq++
	r.messages = append(r.messages, api.Message{ID: fmt.Sprintf("%s-%d", speaker, r.msgSeq), Speaker: speaker,
		Text: text, TS: r.deps.Clock.Now()})
}

// opContext returns ctx canceled also on Close
func (r *Room) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	res, cf := context.WithCancel(ctx)
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		cf()
		return res, cf
	}
	r.opSeq++
	id := r.opSeq
	r.ops[id] = cf
	return res, func() {
		r.lock.Lock()
		delete(r.ops, id)
		r.lock.Unlock()
		cf()
	}
}
