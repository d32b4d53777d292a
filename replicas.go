/*
 * replicas.go, part of goMMVT
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
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rmera/goMMVT/config"
)

// RunReplicas runs n copies of c concurrently. Replica i works in the
// directory dir/i, with its own files and the seed c.Run.Seed+i. Replicas
// share nothing, and the failure of one doesn't stop the others. The
// summaries are indexed by replica; the error is the first failure.
func RunReplicas(ctx context.Context, c *config.Config, n int, dir string, logger zerolog.Logger) ([]*Summary, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: need at least one replica, got %d", config.ErrInvalid, n)
	}
	for i := 0; i < n; i++ {
		if err := os.MkdirAll(filepath.Join(dir, strconv.Itoa(i)), 0o755); err != nil {
			return nil, fmt.Errorf("replica %d: %w", i, err)
		}
	}
	sums := make([]*Summary, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		name := strconv.Itoa(i)
		rc := c.InDir(filepath.Join(dir, name))
		rc.Run.Seed = c.Run.Seed + int64(i)
		g.Go(func() error {
			sum, err := RunMMVT(ctx, rc, name, logger, false)
			sums[i] = sum
			if err != nil {
				return fmt.Errorf("replica %s: %w", name, err)
			}
			return nil
		})
	}
	return sums, g.Wait()
}
