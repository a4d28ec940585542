package worker

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	amessages "github.com/airenas/async-api/pkg/messages"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vgarvardt/gue/v5"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/messages"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/test"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/test/mocks"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils"
)

var (
	filerMock       *mocks.Filer
	dbMock          *mocks.DB
	senderMock      *mocks.Sender
	transcriberMock *mocks.Transcriber
	evaluatorMock   *mocks.Evaluator
	srvData         *ServiceData
)

func initTest(t *testing.T) {
	t.Helper()
	filerMock = &mocks.Filer{}
	dbMock = &mocks.DB{}
	senderMock = &mocks.Sender{}
	transcriberMock = &mocks.Transcriber{}
	evaluatorMock = &mocks.Evaluator{}
	srvData = &ServiceData{DB: dbMock, GueClient: &gue.Client{}, WorkerCount: 10, MsgSender: senderMock,
		Filer: filerMock, Transcriber: transcriberMock, Evaluator: evaluatorMock, Testing: true}
	dbMock.On("LoadAudioJob", mock.Anything, "a1").Return(&persistence.AudioJob{ID: "a1", FileName: "a1/r.wav",
		Status: "pending"}, nil)
	dbMock.On("UpdateAudioJob", mock.Anything, mock.Anything).Return(nil)
	dbMock.On("LoadEvaluation", mock.Anything, "e1").Return(&persistence.Evaluation{ID: "e1", InterviewID: "i1",
		Status: "pending", Transcript: "You: hi"}, nil)
	dbMock.On("UpdateEvaluation", mock.Anything, mock.Anything).Return(nil)
	filerMock.On("LoadFile", mock.Anything, "a1/r.wav").Return(&testFile{Reader: strings.NewReader("audio")}, nil)
	transcriberMock.On("Transcribe", mock.Anything, mock.Anything).Return("hello", nil)
	evaluatorMock.On("Evaluate", mock.Anything, "i1", "You: hi").Return(testResults(), nil)
	senderMock.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil)
}

func testResults() *api.Results {
	return &api.Results{InterviewID: "i1", Scores: []api.RubricScore{{Rubric: "Depth", Score: 1}}}
}

func audioMsg(id string) *messages.AudioMessage {
	return &messages.AudioMessage{QueueMessage: amessages.QueueMessage{ID: id}}
}

func evalMsg(id string) *messages.EvaluateMessage {
	return &messages.EvaluateMessage{QueueMessage: amessages.QueueMessage{ID: id}, InterviewID: "i1"}
}

func Test_handleTranscribe(t *testing.T) {
	initTest(t)
	err := handleTranscribe(test.Ctx(t), audioMsg("a1"), srvData)
	require.Nil(t, err)

	dbMock.AssertNumberOfCalls(t, "UpdateAudioJob", 1)
	job := findCall(t, &dbMock.Mock, "UpdateAudioJob").Arguments[1].(*persistence.AudioJob)
	assert.Equal(t, "done", job.Status)
	assert.Equal(t, "hello", utils.FromSQLStr(job.Transcript))
	assert.False(t, job.Updated.IsZero())

	senderMock.AssertNumberOfCalls(t, "SendMessage", 1)
	assert.Equal(t, messages.NewStatusMessage("a1"), senderMock.Calls[0].Arguments[1])
	assert.Equal(t, messages.DefaultOpts(messages.StatusChange), senderMock.Calls[0].Arguments[2])
	assert.Equal(t, "audio", test.RStr(t, transcriberMock.Calls[0].Arguments[1].(*testFile).Reader))
}

func Test_handleTranscribe_Skip(t *testing.T) {
	initTest(t)
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadAudioJob", mock.Anything, "a1").Return(&persistence.AudioJob{ID: "a1", Status: "done"}, nil)
	err := handleTranscribe(test.Ctx(t), audioMsg("a1"), srvData)
	require.Nil(t, err)
	transcriberMock.AssertNotCalled(t, "Transcribe", mock.Anything, mock.Anything)
	senderMock.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func Test_handleTranscribe_Fail(t *testing.T) {
	tests := []struct {
		name         string
		prepare      func()
		nonRetryable bool
	}{
		{name: "load", prepare: func() {
			dbMock.ExpectedCalls = nil
			dbMock.On("LoadAudioJob", mock.Anything, mock.Anything).Return(nil, errors.New("olia"))
		}},
		{name: "no job", prepare: func() {
			dbMock.ExpectedCalls = nil
			dbMock.On("LoadAudioJob", mock.Anything, mock.Anything).Return(nil, nil)
		}, nonRetryable: true},
		{name: "no file", prepare: func() {
			filerMock.ExpectedCalls = nil
			filerMock.On("LoadFile", mock.Anything, mock.Anything).Return(nil, minio.ErrorResponse{StatusCode: http.StatusNotFound})
		}, nonRetryable: true},
		{name: "file", prepare: func() {
			filerMock.ExpectedCalls = nil
			filerMock.On("LoadFile", mock.Anything, mock.Anything).Return(nil, errors.New("olia"))
		}},
		{name: "transcribe", prepare: func() {
			transcriberMock.ExpectedCalls = nil
			transcriberMock.On("Transcribe", mock.Anything, mock.Anything).Return("", errors.New("olia"))
		}},
		{name: "transcribe empty", prepare: func() {
			transcriberMock.ExpectedCalls = nil
			transcriberMock.On("Transcribe", mock.Anything, mock.Anything).Return("", utils.NewErrNonRetryable(errors.New("olia")))
		}, nonRetryable: true},
		{name: "update", prepare: func() {
			dbMock.ExpectedCalls = nil
			dbMock.On("LoadAudioJob", mock.Anything, "a1").Return(&persistence.AudioJob{ID: "a1", Status: "pending"}, nil)
			dbMock.On("UpdateAudioJob", mock.Anything, mock.Anything).Return(errors.New("olia"))
			filerMock.ExpectedCalls = nil
			filerMock.On("LoadFile", mock.Anything, mock.Anything).Return(&testFile{Reader: strings.NewReader("audio")}, nil)
		}},
		{name: "send", prepare: func() {
			senderMock.ExpectedCalls = nil
			senderMock.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("olia"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initTest(t)
			tt.prepare()
			err := handleTranscribe(test.Ctx(t), audioMsg("a1"), srvData)
			require.NotNil(t, err)
			assert.Equal(t, tt.nonRetryable, utils.IsNonRetryable(err))
		})
	}
}

func Test_transcribeFailure(t *testing.T) {
	initTest(t)
	err := transcribeFailure(srvData)(test.Ctx(t), audioMsg("a1"), errors.New("olia"))
	require.Nil(t, err)
	job := findCall(t, &dbMock.Mock, "UpdateAudioJob").Arguments[1].(*persistence.AudioJob)
	assert.Equal(t, "failed", job.Status)
	assert.Equal(t, "olia", utils.FromSQLStr(job.Error))
	senderMock.AssertNumberOfCalls(t, "SendMessage", 1)
}

func Test_transcribeFailure_NoJob(t *testing.T) {
	initTest(t)
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadAudioJob", mock.Anything, mock.Anything).Return(nil, nil)
	err := transcribeFailure(srvData)(test.Ctx(t), audioMsg("a1"), errors.New("olia"))
	require.Nil(t, err)
	senderMock.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func Test_handleEvaluate(t *testing.T) {
	initTest(t)
	err := handleEvaluate(test.Ctx(t), evalMsg("e1"), srvData)
	require.Nil(t, err)
	ev := findCall(t, &dbMock.Mock, "UpdateEvaluation").Arguments[1].(*persistence.Evaluation)
	assert.Equal(t, "done", ev.Status)
	var res api.Results
	require.Nil(t, json.Unmarshal(ev.Payload, &res))
	assert.Equal(t, *testResults(), res)
}

func Test_handleEvaluate_AudioURL(t *testing.T) {
	initTest(t)
	m := evalMsg("e1")
	m.AudioID = "a1"
	err := handleEvaluate(test.Ctx(t), m, srvData)
	require.Nil(t, err)
	ev := findCall(t, &dbMock.Mock, "UpdateEvaluation").Arguments[1].(*persistence.Evaluation)
	var res api.Results
	require.Nil(t, json.Unmarshal(ev.Payload, &res))
	assert.Equal(t, "/audio/a1", res.AudioURL)
}

func Test_handleEvaluate_Skip(t *testing.T) {
	initTest(t)
	dbMock.ExpectedCalls = nil
	dbMock.On("LoadEvaluation", mock.Anything, "e1").Return(&persistence.Evaluation{ID: "e1", Status: "failed"}, nil)
	err := handleEvaluate(test.Ctx(t), evalMsg("e1"), srvData)
	require.Nil(t, err)
	evaluatorMock.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything, mock.Anything)
}

func Test_handleEvaluate_Fail(t *testing.T) {
	tests := []struct {
		name         string
		prepare      func()
		nonRetryable bool
	}{
		{name: "load", prepare: func() {
			dbMock.ExpectedCalls = nil
			dbMock.On("LoadEvaluation", mock.Anything, mock.Anything).Return(nil, errors.New("olia"))
		}},
		{name: "no evaluation", prepare: func() {
			dbMock.ExpectedCalls = nil
			dbMock.On("LoadEvaluation", mock.Anything, mock.Anything).Return(nil, nil)
		}, nonRetryable: true},
		{name: "evaluate", prepare: func() {
			evaluatorMock.ExpectedCalls = nil
			evaluatorMock.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("olia"))
		}},
		{name: "invalid", prepare: func() {
			evaluatorMock.ExpectedCalls = nil
			evaluatorMock.On("Evaluate", mock.Anything, mock.Anything, mock.Anything).Return(&api.Results{}, nil)
		}, nonRetryable: true},
		{name: "update", prepare: func() {
			dbMock.ExpectedCalls = nil
			dbMock.On("LoadEvaluation", mock.Anything, "e1").Return(&persistence.Evaluation{ID: "e1", InterviewID: "i1",
				Status: "pending", Transcript: "You: hi"}, nil)
			dbMock.On("UpdateEvaluation", mock.Anything, mock.Anything).Return(errors.New("olia"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			initTest(t)
			tt.prepare()
			err := handleEvaluate(test.Ctx(t), evalMsg("e1"), srvData)
			require.NotNil(t, err)
			assert.Equal(t, tt.nonRetryable, utils.IsNonRetryable(err))
		})
	}
}

func Test_evaluateFailure(t *testing.T) {
	initTest(t)
	err := evaluateFailure(srvData)(test.Ctx(t), evalMsg("e1"), errors.New("olia"))
	require.Nil(t, err)
	ev := findCall(t, &dbMock.Mock, "UpdateEvaluation").Arguments[1].(*persistence.Evaluation)
	assert.Equal(t, "failed", ev.Status)
	assert.Equal(t, "olia", utils.FromSQLStr(ev.Error))
}

func Test_validate(t *testing.T) {
	initTest(t)
	tests := []struct {
		name    string
		data    ServiceData
		wantErr bool
	}{
		{name: "OK", data: *srvData, wantErr: false},
		{name: "Fail client", data: ServiceData{WorkerCount: 1, MsgSender: senderMock, DB: dbMock, Filer: filerMock,
			Transcriber: transcriberMock, Evaluator: evaluatorMock}, wantErr: true},
		{name: "Fail workers", data: ServiceData{GueClient: &gue.Client{}, MsgSender: senderMock, DB: dbMock, Filer: filerMock,
			Transcriber: transcriberMock, Evaluator: evaluatorMock}, wantErr: true},
		{name: "Fail sender", data: ServiceData{GueClient: &gue.Client{}, WorkerCount: 1, DB: dbMock, Filer: filerMock,
			Transcriber: transcriberMock, Evaluator: evaluatorMock}, wantErr: true},
		{name: "Fail DB", data: ServiceData{GueClient: &gue.Client{}, WorkerCount: 1, MsgSender: senderMock, Filer: filerMock,
			Transcriber: transcriberMock, Evaluator: evaluatorMock}, wantErr: true},
		{name: "Fail filer", data: ServiceData{GueClient: &gue.Client{}, WorkerCount: 1, MsgSender: senderMock, DB: dbMock,
			Transcriber: transcriberMock, Evaluator: evaluatorMock}, wantErr: true},
		{name: "Fail transcriber", data: ServiceData{GueClient: &gue.Client{}, WorkerCount: 1, MsgSender: senderMock, DB: dbMock,
			Filer: filerMock, Evaluator: evaluatorMock}, wantErr: true},
		{name: "Fail evaluator", data: ServiceData{GueClient: &gue.Client{}, WorkerCount: 1, MsgSender: senderMock, DB: dbMock,
			Filer: filerMock, Transcriber: transcriberMock}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validate(&tt.data); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func findCall(t *testing.T, m *mock.Mock, method string) mock.Call {
	t.Helper()
	for _, c := range m.Calls {
		if c.Method == method {
			return c
		}
	}
	require.Failf(t, "no call", "method %s not called", method)
	return mock.Call{}
}

type testFile struct {
	*strings.Reader
}

func (f *testFile) Close() error {
	return nil
}

