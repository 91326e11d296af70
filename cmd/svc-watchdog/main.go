package main

import (
	"os"

	"github.com/go-go-golems/svclaunch/pkg/watchdog"
)

func main() {
	watchdog.DisableLogging()
	os.Exit(watchdog.Main(os.Args[1:], os.Stdout, os.Stderr))
}
