package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teamalert/teamalert/agent/internal/alert"
	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/light"
	"github.com/teamalert/teamalert/agent/internal/runner"
)

var checkConfig string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build the alerts once from the config file and the live inventories",
	Long: "check loads the config, discovers the lights and jobs and builds every alert " +
		"without driving any light. It fails when the build is fatal.",
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkConfig, "config", "teamalert.yaml", "Path to config file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(checkConfig)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	inv, err := runner.Discover(nil)(ctx, cfg)
	if err != nil {
		return err
	}
	res := alert.Build(ctx, cfg.Alerts, inv.Lights, inv.Jobs, alert.BuildOptions{
		CreateMissingLights: cfg.CreateMissingLights,
		SkipIncomplete:      cfg.SkipIncompleteAlerts,
		Strict:              cfg.Strict,
	})

	fmt.Println(styleHeader.Render(fmt.Sprintf("Lights (%d)", len(res.Lights))))
	fmt.Println("  " + strings.Join(light.Names(res.Lights), ", "))
	fmt.Println(styleHeader.Render(fmt.Sprintf("Alerts (%d)", len(res.Alerts))))
	for _, a := range res.Alerts {
		fmt.Printf("  %s watches %d jobs and allows %d fails",
			strings.Join(light.Names(a.Lights()), ","), len(a.Jobs()), a.FailTolerance())
		if ig := a.Ignored(); len(ig) > 0 {
			fmt.Print(styleDim.Render(" (ignoring " + strings.Join(ig, ", ") + ")"))
		}
		fmt.Println()
	}
	for _, w := range res.Warnings {
		fmt.Println(styleWarn.Render("  warning: " + w))
	}

	switch res.Outcome() {
	case alert.OutcomeFatal:
		fmt.Println(styleError.Render("configuration is invalid"))
		return res.Err
	case alert.OutcomePartial:
		fmt.Println(styleWarn.Render("configuration is usable with warnings"))
	default:
		fmt.Println(styleSuccess.Render("configuration is valid"))
	}
	return nil
}
