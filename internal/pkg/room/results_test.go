package room

import (
	"errors"
	"testing"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/client"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testResults = &api.Results{InterviewID: "i1", Transcript: "user: hello",
	Scores:       []api.RubricScore{{Rubric: "Structure", Score: 4, Max: fp(5)}, {Rubric: "Metrics", Score: 3, Max: fp(5)}},
	FeedbackText: "Good"}

func newTestResultsPoller(t *testing.T, f *fakeResults, attempts int) (*ResultsPoller, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	res, err := NewResultsPoller(f, clk, attempts)
	require.Nil(t, err)
	return res, clk
}

func TestNewResultsPoller(t *testing.T) {
	p, err := NewResultsPoller(&fakeResults{}, newFakeClock(), 0)
	require.Nil(t, err)
	assert.Equal(t, DefaultResultsAttempts, p.maxAttempts)
	_, err = NewResultsPoller(nil, newFakeClock(), 0)
	assert.NotNil(t, err)
	_, err = NewResultsPoller(&fakeResults{}, nil, 0)
	assert.NotNil(t, err)
}

func TestResultsPoll_SixthAttempt(t *testing.T) {
	f := &fakeResults{results: []resultsResult{resultsPending(0), resultsPending(0), resultsPending(0),
		resultsPending(0), resultsPending(0), resultsDone(testResults)}}
	p, clk := newTestResultsPoller(t, f, 0)
	var pending []int
	p.OnPending = func(attempt int) { pending = append(pending, attempt) }

	res, err := p.Poll(test.Ctx(t), "i1")

	require.Nil(t, err)
	assert.Equal(t, "i1", res.InterviewID)
	assert.Equal(t, 6, f.Calls())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, pending)
	assert.Equal(t, []time.Duration{DefaultResultsWait, DefaultResultsWait, DefaultResultsWait,
		DefaultResultsWait, DefaultResultsWait}, clk.Waits())
	o, ok := res.Overall()
	assert.True(t, ok)
	assert.Equal(t, 70, o)
}

func TestResultsPoll_EtaHint(t *testing.T) {
	f := &fakeResults{results: []resultsResult{resultsPending(3), resultsPending(10), resultsPending(0),
		resultsDone(testResults)}}
	p, clk := newTestResultsPoller(t, f, 0)

	_, err := p.Poll(test.Ctx(t), "i1")

	require.Nil(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second, MaxResultsWait, DefaultResultsWait}, clk.Waits())
}

func TestResultsPoll_Timeout(t *testing.T) {
	f := &fakeResults{results: []resultsResult{resultsPending(1)}}
	p, _ := newTestResultsPoller(t, f, 0)

	_, err := p.Poll(test.Ctx(t), "i1")

	assert.ErrorIs(t, err, api.ErrResultsTimeout)
	assert.Equal(t, DefaultResultsAttempts, f.Calls())
}

func TestResultsPoll_Terminal(t *testing.T) {
	f := &fakeResults{results: []resultsResult{resultsPending(1), {resp: &client.ResultsResponse{Code: 500}}}}
	p, _ := newTestResultsPoller(t, f, 0)

	_, err := p.Poll(test.Ctx(t), "i1")

	assert.ErrorIs(t, err, api.ErrServerUnavailable)
	assert.Equal(t, 2, f.Calls())
}

func TestResultsPoll_NetworkErrorsTick(t *testing.T) {
	f := &fakeResults{results: []resultsResult{{err: errors.New("olia")}, resultsDone(testResults)}}
	p, _ := newTestResultsPoller(t, f, 0)

	res, err := p.Poll(test.Ctx(t), "i1")

	require.Nil(t, err)
	assert.NotNil(t, res)
	assert.Equal(t, 2, f.Calls())
}

func TestResultsPoll_Malformed(t *testing.T) {
	f := &fakeResults{results: []resultsResult{{err: api.ErrMalformedResponse}}}
	p, _ := newTestResultsPoller(t, f, 0)

	_, err := p.Poll(test.Ctx(t), "i1")

	assert.ErrorIs(t, err, api.ErrMalformedResponse)
	assert.Equal(t, 1, f.Calls())
}

func TestHintBackOff(t *testing.T) {
	b := &hintBackOff{def: 2 * time.Second, max: 5 * time.Second}
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	b.hint = 4 * time.Second
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	b.hint = time.Minute
	assert.Equal(t, 5*time.Second, b.NextBackOff())
	b.hint = time.Second
	b.Reset()
	assert.Equal(t, 2*time.Second, b.NextBackOff())
}
