// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package train

import (
	"fmt"
	"math/rand/v2"
)

// Dataset is a set of input rows with one scalar target per row.
type Dataset struct {
	Inputs  [][]float64
	Targets []float64
}

// NewDataset generates n rows of width inputs uniform in [-1, 1) with
// targets uniform in [0, 1).
func NewDataset(inputs, n int, rng *rand.Rand) (*Dataset, error) {
	if inputs <= 0 || n <= 0 {
		return nil, fmt.Errorf("%w: dataset of %d rows by %d inputs", ErrInvalidConfig, n, inputs)
	}

	d := &Dataset{
		Inputs:  make([][]float64, n),
		Targets: make([]float64, n),
	}
	for i := range n {
		row := make([]float64, inputs)
		for j := range row {
			row[j] = rng.Float64()*2 - 1
		}
		d.Inputs[i] = row
		d.Targets[i] = rng.Float64()
	}
	return d, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Targets) }
