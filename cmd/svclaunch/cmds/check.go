package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/svclaunch/pkg/launch"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type endpointReport struct {
	Name        string `json:"name"`
	PID         int    `json:"pid,omitempty"`
	CommandLine string `json:"command_line,omitempty"`
	Healthy     bool   `json:"healthy"`
	Error       string `json:"error,omitempty"`
}

type checkReport struct {
	OK        bool             `json:"ok"`
	Endpoints []endpointReport `json:"endpoints,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Launch the plan, validate every endpoint, report JSON and tear everything down",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := getRootOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadPlan(opts)
			if err != nil {
				return err
			}
			bopts, err := buildOptions(cfg, cmd)
			if err != nil {
				return err
			}
			launcher, err := cfg.Build(bopts)
			if err != nil {
				return err
			}

			endpoints, launchErr := launcher.LaunchAll()
			report := checkReport{OK: launchErr == nil}
			if launchErr != nil {
				report.Error = launchErr.Error()
				var agg *launch.AggregateError
				if errors.As(launchErr, &agg) {
					for _, ee := range agg.Errors {
						report.Endpoints = append(report.Endpoints, endpointReport{Name: ee.Name, Error: ee.Err.Error()})
					}
				}
			} else {
				report.Endpoints = reportEndpoints(endpoints, launch.ValidateEndpoints(endpoints))
				launch.TerminateEndpoints(endpoints)
			}

			b, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			if launchErr != nil {
				return launchErr
			}
			log.Info().Int("endpoints", len(endpoints)).Msg("check ok")
			return nil
		},
	}
}

func reportEndpoints(endpoints []*launch.ServiceEndpoint, validateErr error) []endpointReport {
	failed := map[int]error{}
	var agg *launch.AggregateError
	if errors.As(validateErr, &agg) {
		for _, ee := range agg.Errors {
			failed[ee.Index] = ee.Err
		}
	}
	out := make([]endpointReport, 0, len(endpoints))
	for i, ep := range endpoints {
		p := ep.Process()
		r := endpointReport{Name: ep.Name(), PID: p.PID(), CommandLine: p.CommandLine(), Healthy: true}
		if err := failed[i]; err != nil {
			r.Healthy = false
			r.Error = err.Error()
		}
		out = append(out, r)
	}
	return out
}
