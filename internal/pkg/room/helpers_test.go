package room

import (
	"context"
	"sync"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/capture"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/client"
)

// fakeClock fires every wait at once and moves the time forward
type fakeClock struct {
	lock  sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	res := make(chan time.Time, 1)
	res <- c.now
	return res
}

func (c *fakeClock) Waits() []time.Duration {
	c.lock.Lock()
	defer c.lock.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

func (c *fakeClock) Add(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

type statusResult struct {
	resp *client.StatusResponse
	err  error
}

func statusCode(code int) statusResult {
	return statusResult{resp: &client.StatusResponse{Code: code}}
}

func statusDone(transcript string) statusResult {
	return statusResult{resp: &client.StatusResponse{Code: 200,
		Status: &api.AudioStatus{AudioID: "a1", Status: "done", Transcript: transcript}}}
}

// fakeStatus returns the results in order, the last one repeats
type fakeStatus struct {
	lock    sync.Mutex
	results []statusResult
	calls   int
	onCall  func(call int)
}

func (f *fakeStatus) AudioStatus(ctx context.Context, audioID string) (*client.StatusResponse, error) {
	f.lock.Lock()
	f.calls++
	call := f.calls
	r := f.results[min(call, len(f.results))-1]
	h := f.onCall
	f.lock.Unlock()
	if h != nil {
		h(call)
	}
	return r.resp, r.err
}

func (f *fakeStatus) Calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

type fakeUploader struct {
	resp  *api.Upload
	err   error
	calls int
}

func (f *fakeUploader) Upload(ctx context.Context, fileName, contentType string, data []byte) (*api.Upload, error) {
	f.calls++
	return f.resp, f.err
}

type resultsResult struct {
	resp *client.ResultsResponse
	err  error
}

func resultsPending(eta int) resultsResult {
	return resultsResult{resp: &client.ResultsResponse{Code: 202, Pending: &api.Pending{Message: "Processing", EtaSeconds: eta}}}
}

func resultsDone(r *api.Results) resultsResult {
	return resultsResult{resp: &client.ResultsResponse{Code: 200, Results: r}}
}

type fakeResults struct {
	lock    sync.Mutex
	results []resultsResult
	calls   int
	onCall  func(call int)
}

func (f *fakeResults) Results(ctx context.Context, interviewID string) (*client.ResultsResponse, error) {
	f.lock.Lock()
	f.calls++
	call := f.calls
	r := f.results[min(call, len(f.results))-1]
	h := f.onCall
	f.lock.Unlock()
	if h != nil {
		h(call)
	}
	return r.resp, r.err
}

func (f *fakeResults) Calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

type fakeInterviewClient struct {
	lock        sync.Mutex
	turn        *api.Turn
	turnErr     error
	turnCalls   []string
	audioIDs    []string
	onTurn      func()
	finish      *api.Finish
	finishErr   error
	finishCalls int
}

func (f *fakeInterviewClient) CompleteTurn(ctx context.Context, interviewID, turnID string, in *api.TurnRequest) (*api.Turn, error) {
	f.lock.Lock()
	f.turnCalls = append(f.turnCalls, turnID+":"+in.Transcript)
	f.audioIDs = append(f.audioIDs, in.AudioID)
	h := f.onTurn
	f.lock.Unlock()
	if h != nil {
		h()
	}
	return f.turn, f.turnErr
}

func (f *fakeInterviewClient) Finish(ctx context.Context, interviewID string) (*api.Finish, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.finishCalls++
	return f.finish, f.finishErr
}

type fakeRecorder struct {
	lock     sync.Mutex
	active   bool
	startErr error
	blob     *capture.Blob
	stopErr  error
	canceled int
}

func (f *fakeRecorder) Start(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeRecorder) Stop() (*capture.Blob, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.active = false
	return f.blob, f.stopErr
}

func (f *fakeRecorder) Cancel() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.active = false
	f.canceled++
}

func (f *fakeRecorder) Active() bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.active
}

func fp(v float64) *float64 { return &v }
