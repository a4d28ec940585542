package interview

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/pkg/errors"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/evaluation"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/messages"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/status"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/utils"
	amessages "github.com/airenas/async-api/pkg/messages"

	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Store keeps sessions and interviews
type Store interface {
	SaveSession(ctx context.Context, s *persistence.Session) error
	LoadSession(ctx context.Context, id string) (*persistence.Session, error)
	SaveInterview(ctx context.Context, iv *persistence.Interview) error
	LoadInterview(ctx context.Context, id string) (*persistence.Interview, error)
	AppendLines(ctx context.Context, id string, expires time.Time, lines ...persistence.Line) error
	LoadLines(ctx context.Context, id string) ([]persistence.Line, error)
	ClaimEvaluation(ctx context.Context, interviewID, evaluationID string, expires time.Time) (string, bool, error)
	EvaluationID(ctx context.Context, interviewID string) (string, error)
	ReleaseEvaluation(ctx context.Context, interviewID string) error
}

// DB saves evaluation jobs
type DB interface {
	InsertEvaluation(ctx context.Context, e *persistence.Evaluation) error
}

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, *messages.Opts) error
}

// QuestionBank provides interviewer questions
type QuestionBank interface {
	Has(category string) bool
	Question(category string, n int) (*api.Question, bool)
	ClosingLine() string
	Catalog() *api.Catalog
}

// Data keeps data required for service work
type Data struct {
	Port          int
	Store         Store
	DB            DB
	MsgSender     MsgSender
	Bank          QuestionBank
	SessionExpire time.Duration
}

const (
	turnPrefix        = "turn_"
	fromClientMessage = "Continuing previous conversation..."
)

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Int("port", data.Port).Msg("Starting session service")
	if err := validate(data); err != nil {
		return err
	}

	e := initRoutes(data)

	e.Server.Addr = ":" + strconv.Itoa(data.Port)
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 15 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Store == nil {
		return errors.New("no store")
	}
	if data.DB == nil {
		return errors.New("no DB")
	}
	if data.MsgSender == nil {
		return errors.New("no msg sender")
	}
	if data.Bank == nil {
		return errors.New("no question bank")
	}
	if data.SessionExpire <= 0 {
		return errors.Errorf("wrong session expire %v", data.SessionExpire)
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("dryrun_session", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.POST("/session", createSession(data))
	e.GET("/session/:sid", getSession(data))
	e.POST("/session/:sid/interview", createInterview(data))
	e.GET("/interview/:iid", getInterview(data))
	e.POST("/interview/:iid/turn/:tid/complete", completeTurn(data))
	e.POST("/interview/:iid/finish", finish(data))
	e.GET("/catalog", catalog(data))
	e.GET("/live", live(data))

	goapp.Log.Info().Msg("Routes:")
	for _, r := range e.Routes() {
		goapp.Log.Info().Msgf("  %s %s", r.Method, r.Path)
	}
	return e
}

func live(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSONBlob(http.StatusOK, []byte(`{"service":"OK"}`))
	}
}

func createSession(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("create session method")()

		now := time.Now().UTC()
		s := &persistence.Session{ID: utils.NewID(utils.SessionPrefix), Created: now, Expires: now.Add(data.SessionExpire)}
		if err := data.Store.SaveSession(c.Request().Context(), s); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		goapp.Log.Info().Str("ID", s.ID).Time("expires", s.Expires).Msg("session created")
		return c.JSON(http.StatusCreated, toAPISession(s))
	}
}

func getSession(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("get session method")()

		s, err := loadSession(c, data)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, toAPISession(s))
	}
}

func loadSession(c echo.Context, data *Data) (*persistence.Session, error) {
	sid := c.Param("sid")
	if sid == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "no session_id")
	}
	s, err := data.Store.LoadSession(c.Request().Context(), sid)
	if err != nil {
		goapp.Log.Error().Err(err).Send()
		return nil, echo.NewHTTPError(http.StatusInternalServerError)
	}
	if s == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return s, nil
}

func createInterview(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("create interview method")()
		ctx := c.Request().Context()

		var input api.InterviewRequest
		if err := c.Bind(&input); err != nil {
			goapp.Log.Warn().Err(err).Send()
			return echo.NewHTTPError(http.StatusBadRequest, "wrong input")
		}
		if err := validateInterviewRequest(&input, data.Bank); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s, err := loadSession(c, data)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		iv := &persistence.Interview{ID: utils.NewID(utils.InterviewPrefix), SessionID: s.ID,
			Type: api.InterviewType(input.Category), Category: input.Category,
			MaxDurationSeconds: input.MaxDurationSeconds, Started: now, Expires: s.Expires}
		if iv.MaxDurationSeconds <= 0 {
			iv.MaxDurationSeconds = int(api.DefaultMaxDuration.Seconds())
		}
		lines := toLines(input.Messages, now)
		if len(lines) > 0 {
			iv.FirstQuestion = persistence.Question{ID: "from_client", Text: fromClientMessage, Source: "client"}
		} else {
			q, _ := data.Bank.Question(input.Category, 0)
			iv.FirstQuestion = persistence.Question{ID: q.QuestionID, Text: q.Text, Source: q.Source}
			lines = []persistence.Line{{Speaker: string(api.SpeakerAI), Text: q.Text, At: now}}
		}
		if err := data.Store.SaveInterview(ctx, iv); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if err := data.Store.AppendLines(ctx, iv.ID, iv.Expires, lines...); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		goapp.Log.Info().Str("ID", iv.ID).Str("session", s.ID).Str("category", iv.Category).
			Int("maxDuration", iv.MaxDurationSeconds).Int("messages", len(input.Messages)).Msg("interview created")
		return c.JSON(http.StatusCreated, toAPIInterview(iv, lines))
	}
}

func validateInterviewRequest(input *api.InterviewRequest, bank QuestionBank) error {
	if input.Category == "" {
		return errors.New("no category")
	}
	if !bank.Has(input.Category) {
		return errors.Errorf("unknown category '%s'", input.Category)
	}
	if input.MaxDurationSeconds < 0 {
		return errors.Errorf("wrong max_duration_seconds %d", input.MaxDurationSeconds)
	}
	return nil
}

func getInterview(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("get interview method")()

		iv, err := loadInterview(c, data)
		if err != nil {
			return err
		}
		lines, err := data.Store.LoadLines(c.Request().Context(), iv.ID)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, toAPIInterview(iv, lines))
	}
}

func loadInterview(c echo.Context, data *Data) (*persistence.Interview, error) {
	iid := c.Param("iid")
	if iid == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "no interview_id")
	}
	iv, err := data.Store.LoadInterview(c.Request().Context(), iid)
	if err != nil {
		goapp.Log.Error().Err(err).Send()
		return nil, echo.NewHTTPError(http.StatusInternalServerError)
	}
	if iv == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "interview not found")
	}
	return iv, nil
}

func completeTurn(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("complete turn method")()
		ctx := c.Request().Context()

		n, err := parseTurnID(c.Param("tid"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var input api.TurnRequest
		if err := c.Bind(&input); err != nil {
			goapp.Log.Warn().Err(err).Send()
			return echo.NewHTTPError(http.StatusBadRequest, "wrong input")
		}
		if strings.TrimSpace(input.Transcript) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no transcript")
		}
		iv, err := loadInterview(c, data)
		if err != nil {
			return err
		}
		eID, err := data.Store.EvaluationID(ctx, iv.ID)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if eID != "" {
			return echo.NewHTTPError(http.StatusConflict, "interview is finished")
		}
		prev, err := data.Store.LoadLines(ctx, iv.ID)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if cur := currentTurnID(prev); c.Param("tid") != cur {
			return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("turn '%s' is not current, expected '%s'",
				c.Param("tid"), cur))
		}

		res, lines := nextTurn(data.Bank, iv, n, input.Transcript, time.Now().UTC())
		lines[0].AudioID = input.AudioID
		if err := data.Store.AppendLines(ctx, iv.ID, iv.Expires, lines...); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		goapp.Log.Info().Str("ID", iv.ID).Int("turn", n).Bool("end", res.End).Msg("turn completed")
		return c.JSON(http.StatusOK, res)
	}
}

// nextTurn picks the follow-up for turn n, the n-th question of the category.
// The interview ends with the closing line once the questions are exhausted
func nextTurn(bank QuestionBank, iv *persistence.Interview, n int, transcript string, now time.Time) (*api.Turn, []persistence.Line) {
	if n < 1 {
		n = 1
	}
	lines := []persistence.Line{{Speaker: string(api.SpeakerUser), Text: transcript, At: now}}
	res := &api.Turn{}
	if q, ok := bank.Question(iv.Category, n); ok {
		res.Followup = q
		res.NextTurnID = turnID(n + 1)
	} else {
		res.Followup = &api.Question{QuestionID: "q_closing", Text: bank.ClosingLine(), Source: "system"}
		res.End = true
	}
	lines = append(lines, persistence.Line{Speaker: string(api.SpeakerAI), Text: res.Followup.Text, At: now})
	return res, lines
}

func finish(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("finish method")()
		ctx := c.Request().Context()

		iv, err := loadInterview(c, data)
		if err != nil {
			return err
		}
		id, claimed, err := data.Store.ClaimEvaluation(ctx, iv.ID, utils.NewID(utils.EvaluationPrefix), iv.Expires)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if !claimed {
			goapp.Log.Info().Str("ID", iv.ID).Str("evaluation", id).Msg("already finished")
			return c.JSON(http.StatusOK, api.Finish{ProcessingJobID: id})
		}
		if err := startEvaluation(ctx, data, iv, id); err != nil {
			goapp.Log.Error().Err(err).Send()
			if errR := data.Store.ReleaseEvaluation(ctx, iv.ID); errR != nil {
				goapp.Log.Error().Err(errR).Send()
			}
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		goapp.Log.Info().Str("ID", iv.ID).Str("evaluation", id).Msg("interview finished")
		return c.JSON(http.StatusOK, api.Finish{ProcessingJobID: id})
	}
}

func startEvaluation(ctx context.Context, data *Data, iv *persistence.Interview, id string) error {
	lines, err := data.Store.LoadLines(ctx, iv.ID)
	if err != nil {
		return err
	}
	e := &persistence.Evaluation{ID: id, InterviewID: iv.ID, Status: status.Pending.String(),
		Transcript: evaluation.FormatTranscript(lines), Created: time.Now()}
	if err := data.DB.InsertEvaluation(ctx, e); err != nil {
		return err
	}
	return data.MsgSender.SendMessage(ctx, &messages.EvaluateMessage{QueueMessage: amessages.QueueMessage{ID: id},
		InterviewID: iv.ID, AudioID: lastAudioID(lines)}, messages.WorkOpts(messages.Evaluate))
}

// lastAudioID returns the recording of the latest answer having one
func lastAudioID(lines []persistence.Line) string {
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].AudioID != "" {
			return lines[i].AudioID
		}
	}
	return ""
}

func catalog(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, data.Bank.Catalog())
	}
}

func parseTurnID(s string) (int, error) {
	v, ok := strings.CutPrefix(s, turnPrefix)
	if !ok {
		return 0, errors.Errorf("wrong turn id '%s'", s)
	}
	res, err := strconv.Atoi(v)
	if err != nil || res < 0 {
		return 0, errors.Errorf("wrong turn id '%s'", s)
	}
	return res, nil
}

func turnID(n int) string {
	return fmt.Sprintf("%s%d", turnPrefix, n)
}

// currentTurnID is the turn awaiting the next user answer
func currentTurnID(lines []persistence.Line) string {
	answers := 0
	for _, l := range lines {
		if l.Speaker == string(api.SpeakerUser) {
			answers++
		}
	}
	return turnID(answers + 1)
}

func toLines(msgs []api.Message, now time.Time) []persistence.Line {
	var res []persistence.Line
	for _, m := range msgs {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		if m.Speaker != api.SpeakerAI && m.Speaker != api.SpeakerUser {
			continue
		}
		at := m.TS
		if at.IsZero() {
			at = now
		}
		res = append(res, persistence.Line{Speaker: string(m.Speaker), Text: m.Text, At: at})
	}
	return res
}

func toAPISession(s *persistence.Session) *api.Session {
	return &api.Session{SessionID: s.ID, CreatedAt: s.Created, ExpiresAt: s.Expires}
}

func toAPIInterview(iv *persistence.Interview, lines []persistence.Line) *api.Interview {
	return &api.Interview{InterviewID: iv.ID, SessionID: iv.SessionID, Type: iv.Type, Category: iv.Category,
		StartAt: iv.Started, MaxDurationSeconds: iv.MaxDurationSeconds, CurrentTurnID: currentTurnID(lines),
		FirstQuestion: &api.Question{QuestionID: iv.FirstQuestion.ID, Text: iv.FirstQuestion.Text,
			Source: iv.FirstQuestion.Source}}
}
