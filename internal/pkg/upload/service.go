package upload

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/facebookgo/grace/gracehttp"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/api"
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

// FileSaver provides save file functionality
type FileSaver interface {
	SaveFile(ctx context.Context, name string, r io.Reader, fileSize int64) error
}

// MsgSender provides send msg functionality
type MsgSender interface {
	SendMessage(context.Context, amessages.Message, *messages.Opts) error
}

// DB saves audio jobs
type DB interface {
	InsertAudioJob(ctx context.Context, job *persistence.AudioJob) error
}

// Data keeps data required for service work
type Data struct {
	Port      int
	Saver     FileSaver
	DB        DB
	MsgSender MsgSender
	MaxSize   int64
}

const requestIDHeader = "x-request-id"

// StartWebServer starts echo web service
func StartWebServer(data *Data) error {
	goapp.Log.Info().Msgf("Starting HTTP upload service at %d", data.Port)
	if err := validate(data); err != nil {
		return err
	}

	portStr := strconv.Itoa(data.Port)

	e := initRoutes(data)

	e.Server.Addr = ":" + portStr
	e.Server.ReadHeaderTimeout = 5 * time.Second
	e.Server.ReadTimeout = 60 * time.Second
	e.Server.WriteTimeout = 30 * time.Second

	gracehttp.SetLogger(log.New(goapp.Log, "", 0))

	return gracehttp.Serve(e.Server)
}

func validate(data *Data) error {
	if data.Saver == nil {
		return errors.New("no file saver")
	}
	if data.DB == nil {
		return fmt.Errorf("no DB")
	}
	if data.MsgSender == nil {
		return fmt.Errorf("no msg sender")
	}
	return nil
}

var promMdlw *prometheus.Prometheus

func init() {
	promMdlw = prometheus.NewPrometheus("dryrun_upload", nil)
}

func initRoutes(data *Data) *echo.Echo {
	e := echo.New()
	e.Use(middleware.Logger())
	promMdlw.Use(e)
	if data.MaxSize > 0 {
		e.Use(middleware.BodyLimit(strconv.FormatInt(data.MaxSize, 10)))
	}

	e.POST("/audio/upload", upload(data))
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

func upload(data *Data) func(echo.Context) error {
	return func(c echo.Context) error {
		defer goapp.Estimate("upload method")()
		ctx := c.Request().Context()

		form, err := c.MultipartForm()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "no multipart form data")
		}
		defer cleanFiles(form)
		if err := validateFormFiles(form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		fHeader := form.File[api.PrmFile][0]
		if fHeader.Size == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "empty file")
		}
		ext := strings.ToLower(filepath.Ext(fHeader.Filename))
		if !utils.SupportAudioExt(ext) {
			return echo.NewHTTPError(http.StatusBadRequest, "wrong file extension: "+ext)
		}
		job := &persistence.AudioJob{ID: uuid.New().String(), Status: status.Pending.String(), Created: time.Now()}
		job.FileName, err = utils.MakeValidateFileName(job.ID, fHeader.Filename)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "wrong file name: "+fHeader.Filename)
		}
		job.ContentType = takeContentType(fHeader)
		goapp.Log.Info().Str("ID", job.ID).Str("requestID", c.Request().Header.Get(requestIDHeader)).
			Str("file", job.FileName).Int64("size", fHeader.Size).Msg("request info")

		if err := saveFile(ctx, data.Saver, job.FileName, fHeader); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		if err := data.DB.InsertAudioJob(ctx, job); err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}
		err = data.MsgSender.SendMessage(ctx, &messages.AudioMessage{QueueMessage: amessages.QueueMessage{ID: job.ID},
			FileName: job.FileName}, messages.WorkOpts(messages.Transcribe))
		if err != nil {
			goapp.Log.Error().Err(err).Send()
			return echo.NewHTTPError(http.StatusInternalServerError)
		}

		return c.JSON(http.StatusOK, api.Upload{AudioID: job.ID})
	}
}

func cleanFiles(f *multipart.Form) {
	if f != nil {
		_ = f.RemoveAll()
	}
}

func validateFormFiles(form *multipart.Form) error {
	if len(form.File[api.PrmFile]) == 0 {
		return errors.New("no form file parameter 'file'")
	}
	if len(form.File[api.PrmFile]) > 1 {
		return errors.New("multiple files in 'file'")
	}
	for k := range form.File {
		if k != api.PrmFile {
			return errors.Errorf("unexpected form file parameter '%v'", k)
		}
	}
	return nil
}

func takeContentType(h *multipart.FileHeader) string {
	if res := h.Header.Get(echo.HeaderContentType); res != "" && res != "application/octet-stream" {
		return res
	}
	return utils.ContentType(h.Filename)
}

func saveFile(ctx context.Context, fs FileSaver, name string, h *multipart.FileHeader) error {
	f, err := h.Open()
	if err != nil {
		return fmt.Errorf("can't open '%s': %w", h.Filename, err)
	}
	defer f.Close()
	if err = fs.SaveFile(ctx, name, f, h.Size); err != nil {
		return fmt.Errorf("can't save '%s': %w", name, err)
	}
	return nil
}
