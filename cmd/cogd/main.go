// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-clockwork
//
// go-clockwork is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-clockwork is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-clockwork.  If not, see <https://www.gnu.org/licenses/>.


package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/algorand/go-clockwork/cfm"
	"github.com/algorand/go-clockwork/config"
	"github.com/algorand/go-clockwork/logging"
)

var log = logging.Base()

var configFile string

var traceFlag bool

var versionCheck bool

var foreground bool

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(codeCmd)
	rootCmd.AddCommand(showConfigCmd)

	rootCmd.Flags().BoolVarP(&versionCheck, "version", "v", false, "Display the current build version and exit")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFile, "Path to the cogd configuration file")
	rootCmd.PersistentFlags().BoolVarP(&traceFlag, "trace", "T", false, "Trace policy execution to stderr")

	runCmd.Flags().BoolVarP(&foreground, "foreground", "F", false, "Log to stderr as well as the configured destinations")
}

var rootCmd = &cobra.Command{
	Use:   "cogd",
	Short: "Clockwork configuration agent",
	Long:  `cogd retrieves a compiled policy from a Clockwork policy master, enforces it on the local host and answers ad-hoc mesh commands between runs.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if versionCheck {
			fmt.Println(config.FormatVersionAndLicense())
			return
		}
		cmd.HelpFunc()(cmd, args)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run as a daemon, enforcing policy every interval",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		os.Exit(start(cmd, cfm.ModeRun))
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Perform a single configuration run and exit",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		foreground = true
		os.Exit(start(cmd, cfm.ModeOnce))
	},
}

var codeCmd = &cobra.Command{
	Use:   "code",
	Short: "Retrieve the policy and print its disassembly without enforcing it",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		foreground = true
		os.Exit(start(cmd, cfm.ModeCode))
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cfg, err := config.LoadLocal(configFile)
		if err != nil {
			reportErrorf(config.ExitCode(err), "%v", err)
		}
		cfg.ApplyBounds(log)
		if err := cfg.Dump(cmd.OutOrStdout()); err != nil {
			reportErrorf(1, "%v", err)
		}
	},
}

func start(cmd *cobra.Command, mode cfm.Mode) int {
	d, err := newDaemon(cmd.Context(), configFile, mode, setupFlags{Foreground: foreground, Trace: traceFlag}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cogd: %v\n", err)
		return config.ExitCode(err)
	}
	defer d.Close()
	return d.Start(cmd.Context())
}

func reportErrorf(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(code)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
