package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/jenkins"
)

var (
	jobsJenkins     string
	jobsUser        string
	jobsPasswordEnv string
	jobsTokenEnv    string
	jobsTolerance   int
	jobsFilter      string
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the jobs of a Jenkins server with their health",
	RunE:  runJobs,
}

func init() {
	jobsCmd.Flags().StringVar(&jobsJenkins, "jenkins", "", "Jenkins root URL")
	jobsCmd.Flags().StringVar(&jobsUser, "user", "", "Username for basic auth")
	jobsCmd.Flags().StringVar(&jobsPasswordEnv, "password-env", "", "Environment variable holding the basic auth password or API token")
	jobsCmd.Flags().StringVar(&jobsTokenEnv, "token-env", "", "Environment variable holding a bearer token")
	jobsCmd.Flags().IntVar(&jobsTolerance, "tolerance", 0, "Fail tolerance used for the OK column")
	jobsCmd.Flags().StringVar(&jobsFilter, "filter", "", "Only show jobs whose name contains this text")
	_ = jobsCmd.MarkFlagRequired("jenkins")
}

func runJobs(cmd *cobra.Command, args []string) error {
	if jobsTolerance < 0 {
		return fmt.Errorf("--tolerance must not be negative, got %d", jobsTolerance)
	}
	auth := config.AuthConfig{Mode: "none"}
	switch {
	case jobsUser != "" && jobsTokenEnv != "":
		return errors.New("--user and --token-env are mutually exclusive")
	case jobsUser != "":
		auth = config.AuthConfig{Mode: "basic", Username: jobsUser, PasswordEnv: jobsPasswordEnv}
	case jobsTokenEnv != "":
		auth = config.AuthConfig{Mode: "bearer", TokenEnv: jobsTokenEnv}
	}

	s := jenkins.New(config.Jenkins{
		URL:     strings.TrimSuffix(jobsJenkins, "/"),
		Auth:    auth,
		Timeout: config.DefaultJenkinsTimeout,
		Retries: 3,
	})
	ctx := cmd.Context()
	if err := s.Discover(ctx); err != nil {
		return err
	}

	fmt.Println(styleHeader.Render(fmt.Sprintf("%-40s %-5s %-14s %-8s %s", "JOB", "OK", "LAST BUILD OK", "CLAIMED", "BUILDS")))
	for _, name := range s.Jobs() {
		if jobsFilter != "" && !strings.Contains(name, jobsFilter) {
			continue
		}
		found, err := s.Lookup(ctx, name)
		if err != nil || len(found) == 0 {
			continue
		}
		j := found[0]
		if err := j.Refresh(ctx); err != nil {
			fmt.Printf("%-40s %s\n", name, styleError.Render(err.Error()))
			continue
		}
		b := j.Builds()
		fmt.Printf("%-40s %s %s %s %s\n", name,
			renderBool(j.OK(jobsTolerance), pad("yes", 5), pad("no", 5)),
			renderBool(j.LastBuildOK(), pad("yes", 14), pad("no", 14)),
			pad(yesNo(j.Claimed()), 8),
			styleDim.Render(fmt.Sprintf("last %d, success %d, failure %d", b.LastCompleted, b.LastSuccessful, b.LastFailed)),
		)
	}
	if views := s.Views(); len(views) > 0 {
		fmt.Println(styleHeader.Render("Views"))
		fmt.Println("  " + strings.Join(views, ", "))
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
