package main

import (
	"context"

	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/interview"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/postgres"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/questions"
	"github.com/adityaks12/dry-run-interview-prep-platform/internal/pkg/store"
	"github.com/airenas/go-app/pkg/goapp"
	"github.com/labstack/gommon/color"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	data := &interview.Data{}
	data.Port = cfg.GetInt("port")
	data.SessionExpire = cfg.GetDuration("session.expire")
	var err error

	ctx := context.Background()

	dbPool, err := postgres.NewPool(ctx, cfg.GetString("db.url"), cfg.GetBool("db.logConnections"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	data.DB, err = postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}
	data.MsgSender, err = postgres.NewSender(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init gue sender")
	}

	rStore, err := store.NewRedis(cfg.GetString("redis.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init redis")
	}
	defer rStore.Close()
	data.Store = rStore

	data.Bank, err = questions.Load(cfg.GetString("questions.file"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't load questions")
	}

	err = interview.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
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

                         _
   ________  __________(_)___  ____
  / ___/ _ \/ ___/ ___/ / __ \/ __ \
 (__  )  __(__  |__  ) / /_/ / / / /
/____/\___/____/____/_/\____/_/ /_/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/adityaks12/dry-run-interview-prep-platform"))
}
