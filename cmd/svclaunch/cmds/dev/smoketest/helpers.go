package smoketest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"time"

	"github.com/pkg/errors"
)

type testBins struct {
	HTTPEcho   string
	CrashAfter string
	Sleeper    string
	Watchdog   string
}

func findRepoRootFromCaller() string {
	_, thisFile, _, ok := goruntime.Caller(0)
	if !ok {
		wd, _ := os.Getwd()
		return wd
	}
	// this file: cmd/svclaunch/cmds/dev/smoketest/helpers.go
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "..", ".."))
}

func buildTestApps(ctx context.Context, binDir string) (testBins, error) {
	root := findRepoRootFromCaller()
	bins := testBins{
		HTTPEcho:   filepath.Join(binDir, "http-echo"),
		CrashAfter: filepath.Join(binDir, "crash-after"),
		Sleeper:    filepath.Join(binDir, "sleeper"),
		Watchdog:   filepath.Join(binDir, "svc-watchdog"),
	}
	for pkg, out := range map[string]string{
		"./testapps/cmd/http-echo":   bins.HTTPEcho,
		"./testapps/cmd/crash-after": bins.CrashAfter,
		"./testapps/cmd/sleeper":     bins.Sleeper,
		"./cmd/svc-watchdog":         bins.Watchdog,
	} {
		if err := buildTestApp(ctx, root, pkg, out); err != nil {
			return testBins{}, err
		}
	}
	return bins, nil
}

func buildTestApp(ctx context.Context, repoRoot string, pkg string, outPath string) error {
	c := exec.CommandContext(ctx, "go", "build", "-o", outPath, pkg)
	c.Dir = repoRoot
	c.Env = append(os.Environ(), "GOWORK=off")
	b, err := c.CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "build %s: %s", pkg, string(b))
	}
	return nil
}

func findFreeTCPPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = ln.Close() }()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		return 0, err
	}
	var port int
	_, _ = fmt.Sscanf(portStr, "%d", &port)
	if port <= 0 {
		return 0, errors.New("failed to allocate port")
	}
	return port, nil
}

func writePlan(dir string, body string) (string, error) {
	path := filepath.Join(dir, ".svclaunch.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", errors.Wrap(err, "write plan")
	}
	return path, nil
}

func getOK(url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return errors.Wrapf(err, "get %s", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	return nil
}
