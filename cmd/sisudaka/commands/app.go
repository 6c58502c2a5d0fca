package commands

import (
	"database/sql"
	"log/slog"
	"sisudaka/lib/chrono"
	"sisudaka/lib/configutil"
	"sisudaka/lib/daka"
	"sisudaka/lib/history"
	"sisudaka/lib/notify"
	"sisudaka/lib/restyutil"
	"sisudaka/lib/serviceutil"
	"sisudaka/services/checkin"
)

const restyDumpDir = ".dev/resty"

// app is everything a command needs, built from the config file.
type app struct {
	config  checkin.Config
	clock   chrono.StandardClock
	client  *daka.Client
	db      *sql.DB
	service checkin.Service
}

func readConfig() checkin.Config {
	config, err := configutil.ReadConfig[checkin.Config](configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return config
}

func openHistory(config history.Config) *sql.DB {
	db, err := history.OpenDB(config)
	if err != nil {
		serviceutil.Fatal("failed to open history database", err)
	}
	return db
}

func newApp() *app {
	config := readConfig()

	clock, err := chrono.NewStandardClock(config.Schedule.Timezone)
	if err != nil {
		serviceutil.Fatal("failed to load timezone", err)
	}

	opts := config.Remote.ClientOptions()
	if verbose {
		output, err := restyutil.NewFilesystemOutput(restyDumpDir)
		if err != nil {
			slog.Warn("failed to create http dump directory", "dir", restyDumpDir, "err", err)
		} else {
			opts.InstrumentOutput = output
		}
	}
	client, err := daka.NewClient(opts)
	if err != nil {
		serviceutil.Fatal("failed to create client", err)
	}

	db := openHistory(config.History)

	service, err := checkin.NewService(checkin.Options{
		Remote:    client,
		StudentId: config.StudentId,
		Rules:     config.CompileRules(clock),
		Policy:    config.Retry.Policy(),
		Clock:     clock,
		Recorder:  history.NewStore(db),
		Notifier:  notify.NewMailer(config.Notify),
	})
	if err != nil {
		serviceutil.Fatal("failed to create check-in service", err)
	}

	return &app{
		config:  config,
		clock:   clock,
		client:  client,
		db:      db,
		service: service,
	}
}

func (a *app) Close() {
	a.client.Close()
	err := a.db.Close()
	if err != nil {
		slog.Warn("failed to close history database", "err", err)
	}
}
