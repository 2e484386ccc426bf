// Command gsnap runs the locator tool against an in-process scene and serves
// it to a host application over stdin and stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var (
	Version   = "dev"
	BuildDate = "unknown"
)

var (
	configDir string

	rootCmd = &cobra.Command{
		Use:          "gsnap",
		Short:        "Keep a scene locator group and its list in sync",
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Serve the tool over stdin and stdout",
		RunE:  runServe,
	}

	setupDBCmd = &cobra.Command{
		Use:   "setupdb",
		Short: "Create the settings table",
		RunE:  runSetupDB,
	}

	demoCmd = &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted session and print the resulting tool state",
		RunE:  runDemo,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "directory containing "+configFileName())
	rootCmd.AddCommand(runCmd, setupDBCmd, demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(configDir)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("Serving host requests", "version", Version)
	err = a.server().Serve(ctx, os.Stdin, os.Stdout)
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runSetupDB(cmd *cobra.Command, args []string) error {
	a, err := newApp(configDir)
	if err != nil {
		return err
	}
	defer a.close()

	if a.db == nil {
		return fmt.Errorf("settings database is disabled")
	}
	a.logger.Info("DB setup complete", "sqlite", a.db.UsingSqlite)
	return nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	a, err := newApp(configDir)
	if err != nil {
		return err
	}
	defer a.close()

	out, err := a.demo()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
