package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot assembles the CLI command tree.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	serverFlags := &ServerFlags{}
	serveFlags := &ServeFlags{}
	historyFlags := &HistoryFlags{}

	cmd := command{global: globalFlags}

	root := &cobra.Command{
		Use:           "mailauto",
		Short:         "Gmail sign-in automation for Android with managed Appium lifecycle",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "path to TOML config file")

	root.AddCommand(
		createRunCommand(cmd, runFlags),
		createServerCommand(cmd, serverFlags),
		createServeCommand(cmd, serveFlags),
		createHistoryCommand(cmd, historyFlags),
		createDoctorCommand(cmd),
		createVersionCommand(),
	)
	return root
}

func createRunCommand(c command, f *RunFlags) *cobra.Command {
	run := &cobra.Command{
		Use:   "run",
		Short: "Run the sign-in automation end to end",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Run(*f)
		},
	}
	run.Flags().BoolVar(&f.LaunchOnly, "launch-only", false, "only launch and verify the app, skip sign-in")
	return run
}

func createServerCommand(c command, f *ServerFlags) *cobra.Command {
	server := &cobra.Command{
		Use:   "server",
		Short: "Control the managed automation server",
	}
	server.PersistentFlags().StringVar(&f.APIUrl, "api-url", "", "control API base URL of a running daemon (empty = operate locally)")
	server.PersistentFlags().DurationVar(&f.APITimeout, "api-timeout", 0, "control API request timeout")
	server.PersistentFlags().DurationVar(&f.Timeout, "timeout", 0, "startup timeout (0 = config default)")

	server.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start the automation server if it is not already running",
			RunE: func(_ *cobra.Command, _ []string) error {
				return c.ServerStart(*f)
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the automation server if we launched it",
			RunE: func(_ *cobra.Command, _ []string) error {
				return c.ServerStop(*f)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the automation server's state",
			RunE: func(_ *cobra.Command, _ []string) error {
				return c.ServerStatus(*f)
			},
		},
		&cobra.Command{
			Use:   "restart",
			Short: "Restart the automation server",
			RunE: func(_ *cobra.Command, _ []string) error {
				return c.ServerRestart(*f)
			},
		},
	)
	return server
}

func createServeCommand(c command, f *ServeFlags) *cobra.Command {
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the control API daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Serve(*f)
		},
	}
	serve.Flags().StringVar(&f.Listen, "listen", "", "listen address (overrides api.listen)")
	serve.Flags().StringVar(&f.BasePath, "base-path", "", "API base path (overrides api.base_path)")
	return serve
}

func createHistoryCommand(c command, f *HistoryFlags) *cobra.Command {
	hist := &cobra.Command{
		Use:   "history",
		Short: "Show recent automation and server lifecycle events",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.History(*f)
		},
	}
	hist.Flags().IntVar(&f.Limit, "limit", 20, "maximum number of events to show")
	return hist
}

func createDoctorCommand(c command) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the local environment for problems",
		RunE: func(_ *cobra.Command, _ []string) error {
			return c.Doctor()
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("mailauto " + version)
		},
	}
}
