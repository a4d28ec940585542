package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/capture"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/client"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/render"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/room"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/color"
	"github.com/spf13/viper"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		goapp.Log.Warn().Err(err).Msg("can't load .env")
	}
	goapp.StartWithDefault()
	cfg := goapp.Config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner()

	cl, err := client.NewClient(clientOptions(cfg))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init client")
	}
	clk := room.NewClock()

	keeper, err := room.NewSessionKeeper(cl, clk)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init session keeper")
	}
	sess, err := openSession(ctx, keeper, cfg.GetString("session.file"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't open session")
	}
	iv, err := openInterview(ctx, cl, sess.SessionID, cfg.GetString("interview.id"),
		cfg.GetString("interview.category"), cfg.GetInt("interview.minutes"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't open interview")
	}
	goapp.Log.Info().Str("ID", iv.InterviewID).Str("session", sess.SessionID).Msg("interview")

	device, err := newDevice(cfg)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init audio device")
	}
	rec, err := capture.NewRecorder(device)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init recorder")
	}
	tr, err := room.NewTranscriptPoller(cl, cl, clk, cfg.GetDuration("poll.interval"), cfg.GetInt("poll.attempts"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init transcriber")
	}
	rp, err := room.NewResultsPoller(cl, clk, cfg.GetInt("results.attempts"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init results poller")
	}

	rm, err := room.NewRoom(iv, room.Deps{Client: cl, Transcriber: tr, Results: rp, Recorder: rec, Clock: clk},
		room.DefaultOptions())
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init room")
	}
	defer rm.Close()

	printer := render.NewPrinter(os.Stdout)
	v := &view{printer: printer}
	rp.OnPending = func(attempt int) {
		goapp.Log.Debug().Int("attempt", attempt).Msg("results pending")
	}
	printer.Transcript(rm.Snapshot().Messages)
	v.printed = len(rm.Snapshot().Messages)
	rm.OnChange(v.update)

	sh := &shell{room: rm, watcher: cl, printer: printer, out: os.Stdout,
		saveFile:     defaultV(cfg.GetString("transcript.file"), iv.InterviewID+".txt"),
		exportFile:   defaultV(cfg.GetString("results.file"), iv.InterviewID+".json"),
		watchTimeout: cfg.GetDuration("watch.timeout")}
	fmt.Fprint(os.Stdout, helpText)
	sh.run(ctx, os.Stdin)
	goapp.Log.Info().Msg("Bye")
}

func clientOptions(cfg *viper.Viper) client.Options {
	return client.Options{SessionURL: cfg.GetString("api.url"),
		UploadURL: cfg.GetString("api.uploadUrl"), StatusURL: cfg.GetString("api.statusUrl"),
		ResultURL: cfg.GetString("api.resultUrl"), Timeout: cfg.GetDuration("api.timeout"),
		UploadTimeout: cfg.GetDuration("api.uploadTimeout")}
}

// newDevice reads answers from audio.file if set, otherwise from the microphone
func newDevice(cfg *viper.Viper) (capture.Device, error) {
	if file := cfg.GetString("audio.file"); file != "" {
		goapp.Log.Info().Str("file", file).Msg("audio from file")
		d, err := capture.NewFileDevice(file)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return capture.NewCommandDevice(strings.Fields(cfg.GetString("audio.command")), cfg.GetInt("audio.rate")), nil
}

func defaultV[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
       __
  ____/ /______  __      _______  ______
 / __  / ___/ / / /_____/ ___/ / / / __ \
/ /_/ / /  / /_/ /_____/ /  / /_/ / / / /
\__,_/_/   \__, /     /_/   \__,_/_/ /_/
          /____/
   _________  ____  ____ ___
  / ___/ __ \/ __ \/ __ ` + "`" + `__ \
 / /  / /_/ / /_/ / / / / / /
/_/   \____/\____/_/ /_/ /_/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/adityaks12/dry-run-interview-prep-platform"))
}
