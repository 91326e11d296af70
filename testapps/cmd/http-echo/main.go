package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

func main() {
	var port int
	var readyAfter time.Duration
	var exitAfter time.Duration
	flag.IntVar(&port, "port", 0, "Port to listen on (0 for ephemeral)")
	flag.DurationVar(&readyAfter, "ready-after", 0, "Answer /health with 503 until this much time has passed")
	flag.DurationVar(&exitAfter, "exit-after", 0, "Exit with code 4 after this duration (0 = never)")
	flag.Parse()

	if port == 0 {
		if v := os.Getenv("HTTP_ECHO_PORT"); v != "" {
			_, _ = fmt.Sscanf(v, "%d", &port)
		}
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "listen error: %v\n", err)
		os.Exit(2)
	}
	_, _ = fmt.Fprintf(os.Stderr, "listening on %s\n", ln.Addr().String())

	started := time.Now()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if time.Since(started) < readyAfter {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("starting"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(r.URL.Path))
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 2 * time.Second,
	}

	if exitAfter > 0 {
		go func() {
			time.Sleep(exitAfter)
			_, _ = fmt.Fprintln(os.Stderr, "http-echo: exiting")
			os.Exit(4)
		}()
	}

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		_, _ = fmt.Fprintf(os.Stderr, "serve error: %v\n", err)
		os.Exit(3)
	}
}
