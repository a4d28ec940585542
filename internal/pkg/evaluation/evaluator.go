package evaluation

import (
	"context"
	"strings"
	"unicode"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/pkg/errors"
)

// Rubric names
const (
	RubricStructure     = "Structure"
	RubricMetrics       = "Metrics"
	RubricCommunication = "Communication"
	RubricDepth         = "Depth"
)

const rubricMax = 5.0

var structureMarkers = []string{"first", "second", "third", "then", "finally", "next",
	"because", "so ", "to summarize", "in summary", "tradeoff", "step"}

// Scorer evaluates an interview transcript with simple text heuristics
type Scorer struct{}

// NewScorer creates the evaluator
func NewScorer() *Scorer {
	return &Scorer{}
}

// Evaluate scores the candidate answers of the transcript
func (s *Scorer) Evaluate(ctx context.Context, interviewID, transcript string) (*api.Results, error) {
	if strings.TrimSpace(interviewID) == "" {
		return nil, errors.New("no interview ID")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	answers := Answers(transcript)
	goapp.Log.Info().Str("interviewID", interviewID).Int("answers", len(answers)).Msg("evaluating")

	scores := []api.RubricScore{
		newScore(RubricStructure, structureScore(answers)),
		newScore(RubricMetrics, metricsScore(answers)),
		newScore(RubricCommunication, communicationScore(answers)),
		newScore(RubricDepth, depthScore(answers)),
	}
	res := &api.Results{InterviewID: interviewID, Transcript: transcript, Scores: scores,
		FeedbackText: feedback(scores, len(answers))}
	if o, ok := api.DeriveOverall(scores); ok {
		res.OverallScore = &o
	}
	return res, nil
}

func newScore(rubric string, score float64) api.RubricScore {
	max := rubricMax
	return api.RubricScore{Rubric: rubric, Score: score, Max: &max, Comment: comment(rubric, score)}
}

// structureScore counts distinct structure markers
func structureScore(answers []string) float64 {
	found := map[string]bool{}
	for _, a := range answers {
		la := strings.ToLower(a) + " "
		for _, m := range structureMarkers {
			if strings.Contains(la, m) {
				found[m] = true
			}
		}
	}
	return capped(len(found))
}

// metricsScore counts words containing digits or percents
func metricsScore(answers []string) float64 {
	n := 0
	for _, a := range answers {
		for _, w := range strings.Fields(a) {
			if strings.ContainsFunc(w, func(r rune) bool { return unicode.IsDigit(r) || r == '%' }) {
				n++
			}
		}
	}
	return capped(n)
}

// communicationScore rates the average answer length
func communicationScore(answers []string) float64 {
	if len(answers) == 0 {
		return 0
	}
	words := 0
	for _, a := range answers {
		words += len(strings.Fields(a))
	}
	avg := words / len(answers)
	switch {
	case avg < 15:
		return 2
	case avg < 40:
		return 3
	case avg < 120:
		return 4
	default:
		return 5
	}
}

func depthScore(answers []string) float64 {
	return capped(len(answers))
}

func capped(n int) float64 {
	if n > int(rubricMax) {
		return rubricMax
	}
	return float64(n)
}

var comments = map[string][3]string{
	RubricStructure: {"No visible structure.", "Some structure, make the steps explicit.",
		"Clear, well ordered answers."},
	RubricMetrics: {"No numbers were used.", "A few numbers, tie them to the impact.",
		"Good use of metrics."},
	RubricCommunication: {"Nothing to rate.", "Answers are short, add context.",
		"Concise and complete answers."},
	RubricDepth: {"No answers given.", "Answered a few questions, go deeper.",
		"Covered the questions in depth."},
}

var advice = map[string]string{
	RubricStructure:     "Lay out your approach in steps before going into details.",
	RubricMetrics:       "Quantify your impact with concrete numbers.",
	RubricCommunication: "Give a bit more context in each answer.",
	RubricDepth:         "Answer every follow-up and explain the reasoning.",
}

func comment(rubric string, score float64) string {
	c := comments[rubric]
	switch {
	case score <= 0:
		return c[0]
	case score < 4:
		return c[1]
	default:
		return c[2]
	}
}

// feedback picks the advice for the weakest rubric
func feedback(scores []api.RubricScore, answers int) string {
	if answers == 0 {
		return "No answers were recorded. Try the interview again and answer out loud."
	}
	weakest := scores[0]
	for _, s := range scores[1:] {
		if s.Score < weakest.Score {
			weakest = s
		}
	}
	if weakest.Score >= rubricMax {
		return "Strong interview. Keep the same structure and keep quantifying impact."
	}
	return "Focus on " + strings.ToLower(weakest.Rubric) + ". " + advice[weakest.Rubric]
}
