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
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/algorand/go-clockwork/config"
	"github.com/algorand/go-clockwork/crypto"
	"github.com/algorand/go-clockwork/logging"
	"github.com/algorand/go-clockwork/mesh"
	"github.com/algorand/go-clockwork/network"
)

// Exit codes.
const (
	exitOK = iota
	exitUsage
	exitConnect
	exitRemote
)

var log = logging.Base()

var (
	configFile   string
	username     string
	authKey      string
	master       string
	hubCert      string
	timeoutSecs  int
	sleepMillis  int
	filters      []string
	showOptouts  bool
	debug        bool
	versionCheck bool
)

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Read settings from this file instead of the system and user configuration")
	rootCmd.Flags().StringVarP(&username, "username", "u", "", "Authenticate as this user")
	rootCmd.Flags().StringVarP(&authKey, "key", "k", "", "Authenticate with this signing key instead of a password")
	rootCmd.Flags().StringVarP(&master, "master", "m", "", "Mesh master control endpoint")
	rootCmd.Flags().StringVarP(&hubCert, "cert", "C", "", "Mesh master public certificate")
	rootCmd.Flags().IntVarP(&timeoutSecs, "timeout", "t", 0, "Seconds to wait for results")
	rootCmd.Flags().IntVarP(&sleepMillis, "sleep", "s", 0, "Milliseconds between result checks")
	rootCmd.Flags().StringArrayVarP(&filters, "where", "w", nil, "Only run on hosts whose facts match name=glob or name!=glob (repeatable)")
	rootCmd.Flags().BoolVar(&showOptouts, "optouts", false, "Show hosts that opted out of the command")
	rootCmd.Flags().BoolVarP(&debug, "debug", "D", false, "Log protocol details to stderr")
	rootCmd.Flags().BoolVarP(&versionCheck, "version", "v", false, "Display the current build version and exit")
}

var rootCmd = &cobra.Command{
	Use:   "cw-mesh [flags] COMMAND...",
	Short: "Run a command across the Clockwork mesh",
	Long:  `cw-mesh submits a command to the mesh master, which broadcasts it to every subscribed cogd agent. Results are printed one host per line as they arrive.`,
	Run: func(cmd *cobra.Command, args []string) {
		if versionCheck {
			fmt.Println(config.FormatVersionAndLicense())
			return
		}
		if len(args) == 0 {
			cmd.HelpFunc()(cmd, args)
			os.Exit(exitUsage)
		}
		os.Exit(run(cmd.Context(), cmd.Flags(), args))
	},
}

// applyFlags overrides cfg with every flag given on the command line.
func applyFlags(flags *pflag.FlagSet, cfg *config.Mesh) {
	if flags.Changed("username") {
		cfg.Username = username
	}
	if flags.Changed("key") {
		cfg.AuthKey = authKey
	}
	if flags.Changed("master") {
		cfg.Master = master
	}
	if flags.Changed("cert") {
		cfg.Cert = hubCert
	}
	if flags.Changed("timeout") {
		cfg.Timeout = time.Duration(timeoutSecs) * time.Second
	}
	if flags.Changed("sleep") {
		cfg.Sleep = time.Duration(sleepMillis) * time.Millisecond
	}
	if flags.Changed("optouts") {
		cfg.Optouts = showOptouts
	}
}

func run(ctx context.Context, flags *pflag.FlagSet, args []string) int {
	if debug {
		log.SetLevel(logging.Debug)
	} else {
		log.SetLevel(logging.Warn)
	}

	files := config.MeshConfigFiles()
	if configFile != "" {
		files = []string{configFile}
	}
	cfg, err := config.LoadMesh(files...)
	if err != nil {
		return reportError(exitUsage, err)
	}
	applyFlags(flags, &cfg)
	if cfg.Master == "" {
		return reportError(exitUsage, errors.New("no mesh master configured; set mesh.master or use --master"))
	}
	if cfg.Cert == "" {
		return reportError(exitUsage, errors.New("no mesh master certificate configured; set mesh.cert or use --cert"))
	}
	hub, err := crypto.ReadCertificate(cfg.Cert)
	if err != nil {
		return reportError(exitUsage, err)
	}

	q := mesh.Query{
		Username:    cfg.Username,
		Command:     strings.Join(args, " "),
		Filter:      strings.Join(filters, "\n"),
		Timeout:     cfg.Timeout,
		Sleep:       cfg.Sleep,
		ShowOptouts: cfg.Optouts,
	}
	if _, err := mesh.ParseFilter(q.Filter); err != nil {
		return reportError(exitUsage, err)
	}
	q.AuthKey, err = loadAuthKey(cfg.AuthKey)
	if err != nil {
		return reportError(exitUsage, err)
	}
	if q.AuthKey == nil {
		q.Password, err = promptPassword(os.Stdin, os.Stderr, fmt.Sprintf("%s@%s's password: ", cfg.Username, cfg.Master))
		if err != nil {
			return reportError(exitUsage, err)
		}
	}

	ephemeral, err := crypto.Generate(crypto.Encryption, "", nil)
	if err != nil {
		return reportError(exitConnect, err)
	}
	sess, err := network.Dial(ctx, cfg.Master, ephemeral, hub.PublicOnly(), network.DialOptions{Timeout: network.DefaultTimeout, Log: log})
	if err != nil {
		return reportError(exitConnect, err)
	}
	defer sess.Shutdown(500 * time.Millisecond)

	client := mesh.Client{Conn: sess, Output: newResultWriter(os.Stdout), Log: log}
	err = client.Run(ctx, q)
	var remote *mesh.RemoteError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &remote):
		return reportError(exitRemote, err)
	default:
		return reportError(exitConnect, err)
	}
}

func reportError(code int, err error) int {
	fmt.Fprintf(os.Stderr, "cw-mesh: %v\n", err)
	return code
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitUsage)
	}
}
