package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-flume-client/flume"
	"github.com/jrsteele09/go-flume-client/internal/config"
	"github.com/jrsteele09/go-flume-client/internal/logging"
	"github.com/rs/zerolog"
)

const usageText = `usage: flume [-config path] [-log-level level] [-pretty] <command> [args]

commands:
  devices                    list devices
  device <id>                show one device and its location
  flow <id>...               current flow of one or more sensors
  alerts [-device id]        triggered usage alerts
  notifications [-unread]    notification feed
  locations                  list locations
  rules <device>             usage alert rules of a device
  usage <device> [flags]     historical usage query
  monitor [id]...            poll flow into the cache and InfluxDB
  watch [id]...              live flow view
`

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usageText)
			os.Exit(2)
		}
		log.Fatalf("flume: %s\n", err)
	}
}

func run(args []string, out io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	fs := flag.NewFlagSet("flume", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath := fs.String("config", "", "path to config.toml (default ~/.config/flume/config.toml)")
	logLevel := fs.String("log-level", "", "log level override")
	pretty := fs.Bool("pretty", true, "human readable logs")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	level := cfg.GetLogLevel()
	if *logLevel != "" {
		level = *logLevel
	}
	logger := logging.New(os.Stderr, level, *pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	sub, ok := commands[cmd]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	if len(cmdArgs) < sub.minArgs {
		return fmt.Errorf("%w: %s needs %d argument(s)", errUsage, cmd, sub.minArgs)
	}
	if cmd == "monitor" {
		displayAppname(cfg.GetAppName())
	}

	return flume.RunSession(ctx, cfg, func(ctx context.Context, c *flume.Client) error {
		return sub.run(ctx, &env{client: c, cfg: cfg, log: logger, out: out}, cmdArgs)
	}, flume.WithLogger(logger))
}

// env is what every command handler receives.
type env struct {
	client *flume.Client
	cfg    config.Config
	log    zerolog.Logger
	out    io.Writer
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
