package evaluation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tr := "Interviewer: How would you grow usage?\n" +
		"You: First I would clarify the goal, then segment users.\n" +
		"Interviewer: Which metric?\n" +
		"You: We grew weekly active users by 20% in 2 quarters."
	res, err := NewScorer().Evaluate(test.Ctx(t), "intv_1", tr)
	require.Nil(t, err)
	require.Nil(t, res.Validate())
	assert.Equal(t, "intv_1", res.InterviewID)
	assert.Equal(t, tr, res.Transcript)
	require.Len(t, res.Scores, 4)
	assert.Equal(t, RubricStructure, res.Scores[0].Rubric)
	assert.Equal(t, 2.0, res.Scores[0].Score)
	assert.Equal(t, RubricMetrics, res.Scores[1].Rubric)
	assert.Equal(t, 2.0, res.Scores[1].Score)
	assert.Equal(t, RubricCommunication, res.Scores[2].Rubric)
	assert.Equal(t, 2.0, res.Scores[2].Score)
	assert.Equal(t, RubricDepth, res.Scores[3].Rubric)
	assert.Equal(t, 2.0, res.Scores[3].Score)
	for _, s := range res.Scores {
		assert.Equal(t, 5.0, s.MaxValue())
		assert.NotEmpty(t, s.Comment)
	}
	require.NotNil(t, res.OverallScore)
	assert.Equal(t, 40, *res.OverallScore)
	assert.NotEmpty(t, res.FeedbackText)
}

func TestEvaluate_NoAnswers(t *testing.T) {
	res, err := NewScorer().Evaluate(test.Ctx(t), "intv_1", "Interviewer: Hi")
	require.Nil(t, err)
	for _, s := range res.Scores {
		assert.Equal(t, 0.0, s.Score)
	}
	require.NotNil(t, res.OverallScore)
	assert.Equal(t, 0, *res.OverallScore)
	assert.Contains(t, res.FeedbackText, "No answers")
}

func TestEvaluate_Fail(t *testing.T) {
	_, err := NewScorer().Evaluate(test.Ctx(t), "", "You: hi")
	assert.NotNil(t, err)
	ctx, cf := context.WithCancel(test.Ctx(t))
	cf()
	_, err = NewScorer().Evaluate(ctx, "intv_1", "You: hi")
	assert.ErrorIs(t, err, context.Canceled)
}

func Test_communicationScore(t *testing.T) {
	tests := []struct {
		name  string
		words int
		want  float64
	}{
		{name: "short", words: 5, want: 2},
		{name: "medium", words: 20, want: 3},
		{name: "long", words: 60, want: 4},
		{name: "very long", words: 150, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := strings.TrimSpace(strings.Repeat("word ", tt.words))
			assert.Equal(t, tt.want, communicationScore([]string{a}))
		})
	}
	assert.Equal(t, 0.0, communicationScore(nil))
}

func Test_capped(t *testing.T) {
	assert.Equal(t, 5.0, depthScore(make([]string, 8)))
	assert.Equal(t, 3.0, depthScore(make([]string, 3)))
	assert.Equal(t, 5.0, metricsScore([]string{"1 2 3 4% 5 6"}))
}

func Test_feedback(t *testing.T) {
	scores := []api.RubricScore{{Rubric: RubricStructure, Score: 4}, {Rubric: RubricMetrics, Score: 1}}
	assert.Equal(t, "Focus on metrics. Quantify your impact with concrete numbers.", feedback(scores, 2))
	scores = []api.RubricScore{{Rubric: RubricStructure, Score: 5}, {Rubric: RubricMetrics, Score: 5}}
	assert.Contains(t, feedback(scores, 2), "Strong")
}

func TestFormatTranscript(t *testing.T) {
	at := time.Now()
	lines := []persistence.Line{
		{Speaker: "ai", Text: "Question  one?", At: at},
		{Speaker: "user", Text: " my\nanswer ", At: at},
		{Speaker: "system", Text: "ignored", At: at},
		{Speaker: "user", Text: "   ", At: at},
		{Speaker: "ai", Text: "Bye", At: at},
	}
	assert.Equal(t, "Interviewer: Question one?\nYou: my answer\nInterviewer: Bye", FormatTranscript(lines))
	assert.Equal(t, "", FormatTranscript(nil))
}

func TestAnswers(t *testing.T) {
	assert.Equal(t, []string{"a b", "c"}, Answers("Interviewer: q\nYou: a b\nYou:  \nYou: c"))
	assert.Nil(t, Answers(""))
}
