// Package main is the workout tracking client: it records sessions, shows the
// progression recommendations and syncs the state with the backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/BaptisteLac/Zeus-sub000/internal/config"
	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"
	"github.com/BaptisteLac/Zeus-sub000/internal/logging"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const usage = `usage: iron [flags] <command> [args]

commands:
  register <username> <password>   create an account on the sync backend
  login <username> <password>      sign in, enabling sync
  logout                           sign out
  status                           next session, recommendations, rest timer
  session [A|B|C]                  record a session interactively
  resume                           continue the session found after a crash
  discard                          drop the session found after a crash
  rest <exercise>                  start the rest timer of an exercise
  sync                             push the local state to the backend
  reset [exercise]                 clear the history of one exercise or all of them
`

func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path to TOML config file")
	ephemeral := flag.Bool("ephemeral", false, "keep local data in memory only, nothing survives the process")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Debugf("no .env file: %s", err)
	}

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		log.Fatalf("load config: %s", err)
	}

	flush := logging.Setup(logging.LoggerSetupParams{
		LogFileName:      cfg.LogsPath,
		LogToStdout:      cfg.LogToStdout,
		LogLevel:         cfg.LogLevel,
		LogFormatJSON:    cfg.LogFormatJSON,
		Environment:      cfg.Environment,
		SentryEnabled:    cfg.SentryEnabled,
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		SentryServerName: "iron-client",
	})
	defer flush()
	// stdout is for the user
	log.SetOutput(logging.Output(cfg.LogsPath, cfg.LogToStdout, os.Stderr))

	ctx := context.Background()
	opener := faststore.SQLiteOpener(cfg.DataDir)
	if *ephemeral {
		opener = faststore.MemoryOpener()
	}
	a, err := openApp(ctx, cfg, opener)
	if err != nil {
		log.Fatalf("open app: %s", err)
	}

	cmd := &commands{app: a, in: os.Stdin, out: os.Stdout}
	runErr := cmd.run(ctx, flag.Arg(0), flag.Args()[1:])

	if err := a.close(); err != nil {
		log.Errorf("close: %s", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "iron: %s\n", runErr)
		flush()
		os.Exit(1)
	}
}
