//go:build integration
// +build integration

package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/capture"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/client"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/room"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/status"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type config struct {
	sessionURL string
	uploadURL  string
	statusURL  string
	resultURL  string
	cleanURL   string
	dbURL      string
	httpclient *http.Client
	client     *client.Client
}

var cfg config

func TestMain(m *testing.M) {
	cfg.sessionURL = GetEnvOrFail("SESSION_URL")
	cfg.uploadURL = GetEnvOrFail("UPLOAD_URL")
	cfg.statusURL = GetEnvOrFail("STATUS_URL")
	cfg.resultURL = GetEnvOrFail("RESULT_URL")
	cfg.cleanURL = GetEnvOrFail("CLEAN_URL")
	cfg.dbURL = GetEnvOrFail("DB_URL")
	cfg.httpclient = &http.Client{Timeout: time.Second * 30}

	tCtx, cf := context.WithTimeout(context.Background(), time.Second*20)
	defer cf()
	WaitForOpenOrFail(tCtx, cfg.dbURL)
	for _, u := range []string{cfg.sessionURL, cfg.uploadURL, cfg.statusURL, cfg.resultURL, cfg.cleanURL} {
		WaitForOpenOrFail(tCtx, u)
	}
	waitForDB(tCtx, cfg.dbURL)

	var err error
	cfg.client, err = client.NewClient(client.Options{SessionURL: cfg.sessionURL, UploadURL: cfg.uploadURL,
		StatusURL: cfg.statusURL, ResultURL: cfg.resultURL})
	if err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func TestLive(t *testing.T) {
	t.Parallel()
	for _, u := range []string{cfg.sessionURL, cfg.uploadURL, cfg.statusURL, cfg.resultURL, cfg.cleanURL} {
		test.CheckCode(t, test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, u, "/live", nil)), http.StatusOK)
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()
	c, err := cfg.client.Catalog(test.Ctx(t))
	require.Nil(t, err)
	assert.NotEmpty(t, c.CaseTypes)
}

func TestInterview_Unknown(t *testing.T) {
	t.Parallel()
	test.CheckCode(t, test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.sessionURL, "/interview/olia", nil)),
		http.StatusNotFound)
}

func TestStatus_Unknown(t *testing.T) {
	t.Parallel()
	test.CheckCode(t, test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.statusURL, "/audio/olia/status", nil)),
		http.StatusNotFound)
}

func TestResults_Unknown(t *testing.T) {
	t.Parallel()
	res, err := cfg.client.Results(test.Ctx(t), "olia")
	require.Nil(t, err)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestUpload_Fail_NoFile(t *testing.T) {
	t.Parallel()
	test.CheckCode(t, test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodPost, cfg.uploadURL, "/audio/upload", nil)),
		http.StatusBadRequest)
}

func TestTranscript(t *testing.T) {
	t.Parallel()
	ctx, cf := context.WithTimeout(test.Ctx(t), time.Minute)
	defer cf()
	tr, err := room.NewTranscriptPoller(cfg.client, cfg.client, room.NewClock(), 500*time.Millisecond, 40)
	require.Nil(t, err)

	answer, err := tr.Transcribe(ctx, &capture.Blob{Data: testWav(), ContentType: "audio/wav", FileName: "answer.wav"})

	require.Nil(t, err)
	assert.NotEmpty(t, answer.Text)
	assert.NotEmpty(t, answer.AudioID)
}

func TestStatus_Subscribe(t *testing.T) {
	t.Parallel()
	ctx, cf := context.WithTimeout(test.Ctx(t), time.Minute)
	defer cf()
	up, err := cfg.client.Upload(ctx, "answer.wav", "audio/wav", testWav())
	require.Nil(t, err)
	require.NotEmpty(t, up.AudioID)

	ch, closeFunc, err := cfg.client.HookToStatus(ctx, up.AudioID)
	require.Nil(t, err)
	defer closeFunc()
	for {
		select {
		case <-ctx.Done():
			require.Fail(t, "no final status")
		case st, ok := <-ch:
			require.True(t, ok, "connection closed")
			assert.Equal(t, up.AudioID, st.AudioID)
			if status.From(st.Status).Final() {
				assert.Equal(t, status.Done.String(), st.Status)
				assert.NotEmpty(t, st.Transcript)
				return
			}
		}
	}
}

func TestInterview_Flow(t *testing.T) {
	t.Parallel()
	ctx, cf := context.WithTimeout(test.Ctx(t), 2*time.Minute)
	defer cf()
	sess, err := cfg.client.CreateSession(ctx)
	require.Nil(t, err)
	iv, err := cfg.client.StartInterview(ctx, sess.SessionID, &api.InterviewRequest{Category: api.CategoryBehavioral,
		MaxDurationSeconds: 120})
	require.Nil(t, err)
	assert.Equal(t, 120, iv.MaxDurationSeconds)
	require.NotNil(t, iv.FirstQuestion)

	turnID := iv.CurrentTurnID
	for _, a := range []string{"I led a team of five and we cut the release time by 30 percent.",
		"First I measured the baseline, then we automated the tests, as a result errors dropped."} {
		turn, err := cfg.client.CompleteTurn(ctx, iv.InterviewID, turnID, &api.TurnRequest{Transcript: a})
		require.Nil(t, err)
		if turn.End {
			break
		}
		if turn.NextTurnID != "" {
			turnID = turn.NextTurnID
		}
	}

	fin, err := cfg.client.Finish(ctx, iv.InterviewID)
	require.Nil(t, err)
	assert.NotEmpty(t, fin.ProcessingJobID)

	rp, err := room.NewResultsPoller(cfg.client, room.NewClock(), 30)
	require.Nil(t, err)
	res, err := rp.Poll(ctx, iv.InterviewID)
	require.Nil(t, err)
	assert.Equal(t, iv.InterviewID, res.InterviewID)
	assert.NotEmpty(t, res.Scores)
	_, ok := res.Overall()
	assert.True(t, ok)

	test.CheckCode(t, test.Invoke(t, cfg.httpclient, NewRequest(t, http.MethodDelete, cfg.cleanURL,
		"/delete/"+fin.ProcessingJobID, nil)), http.StatusOK)
}
