/*
 * main.go, part of goMMVT
 *
 *
 * Copyright 2026 Raul Mera <rmera{at}usach(dot)cl>
 *
 *
 *  This program is free software; you can redistribute it and/or modify
 *  it under the terms of the GNU General Public License as published by
 *  the Free Software Foundation; either version 2 of the License, or
 *  (at your option) any later version.
 *
 *  This program is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 *  GNU General Public License for more details.
 *
 *  You should have received a copy of the GNU General Public License along
 *  with this program; if not, write to the Free Software Foundation, Inc.,
 *  51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 *
 *
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rmera/goMMVT/config"
	"github.com/rmera/goMMVT/internal/log"
)

// globalFlags are shared by all subcommands.
type globalFlags struct {
	verbose int
	console bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:   "gommvt",
		Short: "Markovian milestoning with Voronoi tessellations (MMVT) on Langevin dynamics",
		Long: `gommvt runs Langevin dynamics of a Lennard-Jones system confined to a
Voronoi cell by milestones, and records every milestone crossing in a
durable, append-only log that the MMVT kinetics can be computed from.

Use:
  gommvt [FLAGS] run [config.yaml]
  gommvt [FLAGS] replicas config.yaml -n N`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Configure(log.Config{Verbosity: g.verbose, Console: g.console, Output: cmd.ErrOrStderr()})
		},
	}
	root.PersistentFlags().IntVarP(&g.verbose, "verbose", "v", 0, "Level of verbosity, the higher, the more verbose.")
	root.PersistentFlags().BoolVar(&g.console, "console", false, "human readable logs instead of JSON lines")
	root.AddCommand(newRunCmd(), newReplicasCmd(), newCheckCmd(), newAnalyzeCmd(), newExampleCmd())
	return root
}

// loadConfig reads the run file named in args, or returns the built-in
// demonstration if there is none.
func loadConfig(args []string) (*config.Config, error) {
	if len(args) == 0 {
		return config.Default(), nil
	}
	return config.Load(args[0])
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gommvt:", err)
		os.Exit(1)
	}
}
