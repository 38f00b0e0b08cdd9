package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkeycursor/xkeycursor"
	"github.com/xkeycursor/xkeycursor/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to the bindings file")
	logLevel := flag.String("log-level", "", "log level (trace, debug, info, warn, error)")
	backend := flag.String("backend", "", "input backend: auto, x11 or evdev")
	printDefault := flag.Bool("print-default", false, "print the default bindings file and exit")
	flag.Parse()

	if *printDefault {
		out, err := config.Encode(config.Default())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(out)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGTSTP)
	defer stop()

	xkeycursor.Main(ctx, xkeycursor.Options{
		ConfigPath: *configPath,
		LogLevel:   *logLevel,
		Backend:    *backend,
	})
}
