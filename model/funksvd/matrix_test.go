// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package funksvd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestFeatureMatrix(t *testing.T) {
	m := copyFeatureMatrix([][]float64{{1, 2, 3}, {4, 5, 6}}, 3)
	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, 6.0, m.At(1, 2))
	assert.True(t, mat.Equal(mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}), m))
	assert.True(t, mat.Equal(mat.NewDense(3, 2, []float64{1, 4, 2, 5, 3, 6}), m.T()))
	assert.Equal(t, []float64{4, 5, 6}, m.Row(1))
	assert.Equal(t, []float64{2, 5}, m.Column(1))
	// copies
	row := m.Row(0)
	row[0] = 100
	assert.Equal(t, 1.0, m.At(0, 0))
	// out of range
	assert.Panics(t, func() { m.At(2, 0) })
	assert.Panics(t, func() { m.At(0, 3) })
	assert.Panics(t, func() { m.Row(-1) })
	assert.Panics(t, func() { m.Column(3) })
}

func TestNewFeatureMatrix(t *testing.T) {
	m := newFeatureMatrix(2, 4, 0.1)
	rows, cols := m.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 4, cols)
	for f := 0; f < rows; f++ {
		assert.Equal(t, []float64{0.1, 0.1, 0.1, 0.1}, m.Row(f))
	}
}

func TestNewFeatureInfo(t *testing.T) {
	info := newFeatureInfo(2, 7, 0.5, []float64{3, 4}, []float64{-1, 0, 1})
	assert.Equal(t, 2, info.Feature)
	assert.Equal(t, 7, info.Epochs)
	assert.Equal(t, 0.5, info.MeanSquaredError)
	assert.Equal(t, -1.0, info.MinValue)
	assert.Equal(t, 4.0, info.MaxValue)
	assert.Equal(t, 3.5, info.UserAverage)
	assert.Zero(t, info.ItemAverage)
	assert.InDelta(t, 5*math.Sqrt2, info.SingularValue, 1e-12)
}
