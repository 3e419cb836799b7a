package main

import (
	"context"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sammck-go/zonerpc/zone"
)

var help = `
  Usage: zonerpc-demo [command] [--help]

  Commands:
    server - hosts a calculator object and accepts inbound zone connections
    client - connects to a zonerpc-demo server and calls its calculator

  Read more:
    https://github.com/sammck-go/zonerpc

`

func sigIntHandler(ctx context.Context, cancel context.CancelFunc) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT)
	for {
		select {
		case <-sig:
			fmt.Fprintln(os.Stderr, "SIGINT received; cancelling")
		case <-ctx.Done():
		}
		signal.Stop(sig)
		cancel()
		return
	}
}

func generatePidFile() {
	pid := []byte(strconv.Itoa(os.Getpid()))
	if err := ioutil.WriteFile("zonerpc-demo.pid", pid, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "writing pid file: %s\n", err)
		os.Exit(1)
	}
}

func main() {
	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	flag.Bool("help", false, "")
	flag.Bool("h", false, "")
	flag.Usage = func() {}
	flag.Parse()

	args := flag.Args()
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "server":
		go sigIntHandler(ctx, ctxCancel)
		runServer(ctx, args)
	case "client":
		go sigIntHandler(ctx, ctxCancel)
		runClient(ctx, args)
	default:
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func newDemoLogger(prefix string, verbose bool) zone.Logger {
	level := zone.LogLevelInfo
	if verbose {
		level = zone.LogLevelDebug
	}
	return zone.NewLogger(prefix, level)
}
