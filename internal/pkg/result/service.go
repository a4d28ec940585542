package result

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/pkg/errors"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/filer"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/persistence"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/status"
	"github.com/airenas/go-app/pkg/goapp"

	"github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// FileReader loads file by name
type FileReader interface {
	LoadFile(ctx context.Context, name string) (io.ReadSeekCloser, error)
}

// DB loads evaluations and audio jobs
type DB interface {
	LoadEvaluationByInterview(ctx context.Context, interviewID string) (*persistence.Evaluation, error)
	LoadAudioJob(ctx context.Context, id string) (*persistence.AudioJob, error)
}

// Data keeps data required for service work
type Data struct {
	Port   int
	Reader FileReader
	DB     DB
	// Eta is the expected evaluation time reported to pending clients
	Eta time.Duration

	now func() time.Time
}

const pendingMessage = "Processing"

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Int("port", data.Port).Msg("Starting HTTP result service")

	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 5 * time.Minute

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Reader == nil {
		return errors.New("no file reader")
	}
	if data.DB == nil {
		return errors.New("no DB")
	}
	if data.Eta < 0 {
		return errors.Errorf("wrong eta %v", data.Eta)
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("dryrun_result", nil)
}

func initRoutes(data *Data) *echo.Echo {
	if data.now == nil {
		data.now = time.Now
	}
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)

	e.GET("/interview/:iid/results", results(data))
	e.GET("/session/:sid/interview/:iid/results", results(data))
	e.GET("/audio/:id", downloadAudio(data))
	e.HEAD("/audio/:id", downloadAudio(data))
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

func results(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("results method")()

		id := c.Param("iid")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no ID")
		}
		ev, err := data.DB.LoadEvaluationByInterview(c.Request().Context(), id)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "service error")
		}
		if ev == nil {
			return echo.NewHTTPError(http.StatusNotFound, "interview is not finished")
		}
		switch status.From(ev.Status) {
		case status.Done:
		case status.Failed:
			goapp.Log.Warn().Str("ID", ev.ID).Str("err", ev.Error.String).Msg("evaluation failed")
			return echo.NewHTTPError(http.StatusInternalServerError, "evaluation failed")
		default:
			return c.JSON(http.StatusAccepted, api.Pending{Message: pendingMessage,
				EtaSeconds: etaSeconds(data.Eta, data.now().Sub(ev.Created))})
		}
		var res api.Results
		if err := json.Unmarshal(ev.Payload, &res); err != nil {
			goapp.Log.Error().Err(err).Str("ID", ev.ID).Msg("wrong payload")
			return echo.NewHTTPError(http.StatusInternalServerError, "wrong evaluation payload")
		}
		return c.JSON(http.StatusOK, res)
	}
}

// etaSeconds returns remaining seconds, at least 1
func etaSeconds(eta, elapsed time.Duration) int {
	left := int(math.Ceil((eta - elapsed).Seconds()))
	if left < 1 {
		return 1
	}
	return left
}

func downloadAudio(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("download method")()

		id := c.Param("id")
		if id == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "no ID")
		}
		job, err := data.DB.LoadAudioJob(c.Request().Context(), id)
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError, "service error")
		}
		if job == nil {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return serveFile(c, data, job.FileName)
	}
}

func serveFile(c echo.Context, data *Data, name string) error {
	goapp.Log.Info().Str("file", name).Msg("loading")
	file, err := data.Reader.LoadFile(c.Request().Context(), name)
	if err != nil {
		return mapFileErr(err, "can't get file")
	}
	defer file.Close()
	stGetter, ok := file.(interface{ Stat() (fs.FileInfo, error) })
	if !ok {
		goapp.Log.Error().Msg(`file does not implement "interface{ Stat() (fs.FileInfo, error)"`)
		return echo.NewHTTPError(http.StatusInternalServerError, "can't get file stat")
	}
	stat, err := stGetter.Stat()
	if err != nil {
		return mapFileErr(err, "can't get file stat")
	}

	w := c.Response()
	w.Header().Set("Content-Disposition", "attachment; filename="+filepath.Base(stat.Name()))
	http.ServeContent(w, c.Request(), stat.Name(), stat.ModTime(), file)
	return nil
}

func mapFileErr(err error, msg string) error {
	goapp.Log.Error().Err(err).Send()
	if filer.IsNotFound(err) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}
