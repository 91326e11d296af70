package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	var d time.Duration
	var ignoreTerm bool
	var pidFile string
	flag.DurationVar(&d, "for", time.Minute, "How long to run")
	flag.BoolVar(&ignoreTerm, "ignore-term", false, "Ignore SIGTERM so only a kill stops the process")
	flag.StringVar(&pidFile, "pid-file", "", "Write the PID to this file once started")
	flag.Parse()

	if ignoreTerm {
		signal.Ignore(syscall.SIGTERM)
	}
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "write pid file: %v\n", err)
			os.Exit(2)
		}
	}

	_, _ = fmt.Fprintf(os.Stderr, "sleeper: pid=%d for=%s ignore-term=%v\n", os.Getpid(), d, ignoreTerm)
	time.Sleep(d)
}
