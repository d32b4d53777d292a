/*
 * commands.go, part of goMMVT
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
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rmera/goMMVT/config"
	"github.com/rmera/goMMVT/internal/log"
	"github.com/rmera/goMMVT/mmvt"
	"github.com/rmera/goMMVT/record"
)

// runFlags override the values of the run file. There are many, but they
// are meant not to be needed most of the time.
type runFlags struct {
	temperature float64
	friction    float64
	timestep    float64
	steps       int64
	chunk       int
	seed        int64
	bounce      string
	output      string
	mode        string
	trajectory  string
	statistics  string
	saveState   string
	metrics     string
	progress    bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Float64Var(&f.temperature, "temperature", 300, "temperature of the thermostat (K)")
	fl.Float64Var(&f.friction, "friction", 1, "friction coefficient (1/ps)")
	fl.Float64Var(&f.timestep, "timestep", 0.002, "integration timestep (ps)")
	fl.Int64Var(&f.steps, "steps", 30000, "number of steps to run")
	fl.IntVar(&f.chunk, "chunk", 10, "steps between trajectory frames")
	fl.Int64Var(&f.seed, "seed", 1, "seed for the random numbers")
	fl.StringVar(&f.bounce, "bounce", "reverse", "bounce on reflective milestones: reverse or specular")
	fl.StringVarP(&f.output, "output", "o", "mmvt.txt", "crossing log")
	fl.StringVar(&f.mode, "mode", "fresh", "fresh truncates an existing crossing log, resume appends to it")
	fl.StringVar(&f.trajectory, "trajectory", "", "XYZ trajectory file")
	fl.StringVar(&f.statistics, "statistics", "", "file for the MMVT statistics, rewritten after each bounce")
	fl.StringVar(&f.saveState, "save-state", "", "prefix for state snapshots taken after single bounces")
	fl.StringVar(&f.metrics, "metrics", "", "write Prometheus metrics to this textfile at the end of the run")
	fl.BoolVar(&f.progress, "progress", false, "show a progress bar")
}

// apply copies the flags given on the command line into c.
func (f *runFlags) apply(cmd *cobra.Command, c *config.Config) error {
	set := cmd.Flags().Changed
	if set("temperature") {
		c.Run.Temperature = f.temperature
	}
	if set("friction") {
		c.Run.Friction = f.friction
	}
	if set("timestep") {
		c.Run.Timestep = f.timestep
	}
	if set("steps") {
		c.Run.Steps = f.steps
	}
	if set("chunk") {
		c.Run.Chunk = f.chunk
	}
	if set("seed") {
		c.Run.Seed = f.seed
	}
	if set("bounce") {
		c.Run.Bounce = f.bounce
	}
	if set("output") {
		c.Output.Log = f.output
	}
	if set("mode") {
		c.Output.Mode = f.mode
	}
	if set("trajectory") {
		c.Output.Trajectory = f.trajectory
	}
	if set("statistics") {
		c.Output.Statistics = f.statistics
	}
	if set("save-state") {
		c.Output.SaveState = f.saveState
	}
	if set("metrics") {
		c.Output.Metrics = f.metrics
	}
	return c.Validate()
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "Run one MMVT trajectory (the argon box demonstration without a config file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(args)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, c); err != nil {
				return err
			}
			sum, err := RunMMVT(cmd.Context(), c, "0", log.WithComponent("run"), f.progress)
			if sum != nil {
				fmt.Fprintln(cmd.OutOrStdout(), sum)
			}
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func newReplicasCmd() *cobra.Command {
	var f runFlags
	var n int
	var dir string
	cmd := &cobra.Command{
		Use:   "replicas config.yaml",
		Short: "Run independent replicas concurrently, each in its own directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(args)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, c); err != nil {
				return err
			}
			sums, err := RunReplicas(cmd.Context(), c, n, dir, log.WithComponent("replicas"))
			for _, s := range sums {
				if s != nil {
					fmt.Fprintln(cmd.OutOrStdout(), s)
				}
			}
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&n, "replicas", "n", 2, "number of replicas")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory where the replica directories are created")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [config.yaml]",
		Short: "Validate a run file and print the milestone scheme and the starting cell",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(args)
			if err != nil {
				return err
			}
			sc, err := c.Scheme()
			if err != nil {
				return err
			}
			_, s, err := c.BuildSystem()
			if err != nil {
				return err
			}
			d, err := mmvt.NewDetector(sc, s, mmvt.DetectorOptions{Tolerance: c.Run.Tolerance})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, sc)
			fmt.Fprintf(out, "%d particles, %d steps of %g ps at %g K\n", s.Len(), c.Run.Steps, c.Run.Timestep, c.Run.Temperature)
			cell, err := mmvt.StartingCell(sc, d.Sides())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "starting cell: %d\n", cell)
			return nil
		},
	}
}

func newAnalyzeCmd() *cobra.Command {
	var statsFile string
	cmd := &cobra.Command{
		Use:   "analyze log.txt",
		Short: "Replay a crossing log into MMVT statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := record.ReadLog(args[0])
			if err != nil {
				return err
			}
			st, err := Analyze(l)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %d events, %d resumes, %d torn lines, steps %d\n", len(l.Events), l.Resumes, l.Torn, l.Steps)
			nosrc := 0
			for _, e := range l.Events {
				if e.NoSource {
					nosrc++
				}
			}
			if nosrc > 0 {
				fmt.Fprintf(out, "# %d crossings marked * (source milestone never crossed), their statistics are invalid\n", nosrc)
			}
			if _, err := st.WriteTo(out); err != nil {
				return err
			}
			if statsFile != "" {
				return st.Save(statsFile)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statsFile, "stats", "", "also write the statistics to this file")
	return cmd
}

// Analyze computes the statistics of the bounces in l, over all milestones
// that appear in it. Each run segment of the log is replayed on its own
// clock.
func Analyze(l *record.Log) (*mmvt.Statistics, error) {
	seen := make(map[int]bool)
	var ids []int
	for _, e := range l.Events {
		if !seen[e.Milestone] {
			seen[e.Milestone] = true
			ids = append(ids, e.Milestone)
		}
	}
	sort.Ints(ids)
	mids := make([]mmvt.MilestoneID, len(ids))
	for i, id := range ids {
		mids[i] = mmvt.MilestoneID(id)
	}
	st := mmvt.NewStatistics(mids)
	starts := make(map[int]bool, len(l.Segments))
	for _, k := range l.Segments {
		if k > 0 {
			starts[k] = true
		}
	}
	for k, e := range l.Events {
		if starts[k] {
			st.Restart()
		}
		if !e.Bounced {
			continue
		}
		if err := st.Observe(mmvt.MilestoneID(e.Milestone), e.Time); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func newExampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "example",
		Short: "Print the argon box demonstration run file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Default().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
