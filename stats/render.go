// Package stats exports squall runtime counters and histograms.
/*
 * Copyright (c) 2024-2026, Squall Authors. All rights reserved.
 */
package stats

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// WriteHistogram persists a text-format snapshot of the named histogram (or
// of all metrics when name is empty) to path.
func WriteHistogram(path string, g prometheus.Gatherer, name string) error {
	mfs, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, mf := range mfs {
		if name != "" && !strings.HasPrefix(mf.GetName(), promPrefix+name) {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return errors.Wrapf(err, "failed to encode %q", mf.GetName())
		}
	}
	return nil
}
