package health

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-go-golems/svclaunch/pkg/proc"
	"github.com/rs/zerolog/log"
)

const DefaultPollInterval = 200 * time.Millisecond

// Doer sends a single request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type HTTPOKOptions struct {
	// MaxWait is measured from process start. Zero allows a single probe.
	MaxWait      time.Duration
	PollInterval time.Duration
	Client       Doer
}

// HTTPOK polls StatusURL until it answers 200 OK. It fails once MaxWait has
// elapsed since the process started, or as soon as the process exits.
type HTTPOK struct {
	StatusURL string
	opts      HTTPOKOptions
}

func NewHTTPOK(statusURL string, opts HTTPOKOptions) *HTTPOK {
	if opts.MaxWait < 0 {
		opts.MaxWait = 0
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 2 * time.Second}
	}
	return &HTTPOK{StatusURL: statusURL, opts: opts}
}

// DefaultHTTPOK polls statusURL with the default budget and interval.
func DefaultHTTPOK(statusURL string) *HTTPOK {
	return NewHTTPOK(statusURL, HTTPOKOptions{MaxWait: DefaultMaxWait})
}

func (v *HTTPOK) ValidateHealth(p proc.Process) error {
	for {
		if v.statusOK(remaining(p, v.opts.MaxWait)) {
			return nil
		}
		if remaining(p, v.opts.MaxWait) < 0 || p.WaitTimeout(0) {
			return &ValidationError{
				CommandLine: p.CommandLine(),
				Reason:      "is not responding on url: " + v.StatusURL,
			}
		}
		time.Sleep(v.opts.PollInterval)
	}
}

// statusOK bounds the request by budget so a slow server cannot push the
// failure past the deadline. A spent budget still allows one probe, bounded
// by the client's own timeout.
func (v *HTTPOK) statusOK(budget time.Duration) bool {
	ctx := context.Background()
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.StatusURL, nil)
	if err != nil {
		log.Debug().Err(err).Str("url", v.StatusURL).Msg("invalid status url")
		return false
	}
	resp, err := v.opts.Client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", v.StatusURL).Msg("status probe failed")
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
