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
	"gonum.org/v1/gonum/mat"
)

// FeatureMatrix is a read-only dense matrix laid out feature-major: row f holds
// feature f of every entity and column j belongs to the entity at position j.
type FeatureMatrix struct {
	data [][]float64
	cols int
}

var _ mat.Matrix = (*FeatureMatrix)(nil)

func newFeatureMatrix(rows, cols int, value float64) *FeatureMatrix {
	data := make([][]float64, rows)
	for i := range data {
		data[i] = make([]float64, cols)
		for j := range data[i] {
			data[i][j] = value
		}
	}
	return &FeatureMatrix{data: data, cols: cols}
}

func copyFeatureMatrix(data [][]float64, cols int) *FeatureMatrix {
	m := &FeatureMatrix{data: make([][]float64, len(data)), cols: cols}
	for i := range data {
		m.data[i] = append([]float64(nil), data[i]...)
	}
	return m
}

// Dims returns the number of features and the number of entities.
func (m *FeatureMatrix) Dims() (r, c int) {
	return len(m.data), m.cols
}

func (m *FeatureMatrix) At(i, j int) float64 {
	if i < 0 || i >= len(m.data) {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	return m.data[i][j]
}

func (m *FeatureMatrix) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// Row returns a copy of feature f across all entities.
func (m *FeatureMatrix) Row(f int) []float64 {
	if f < 0 || f >= len(m.data) {
		panic(mat.ErrRowAccess)
	}
	return append([]float64(nil), m.data[f]...)
}

// Column returns a copy of the latent vector of the entity at position pos.
func (m *FeatureMatrix) Column(pos int) []float64 {
	if pos < 0 || pos >= m.cols {
		panic(mat.ErrColAccess)
	}
	vec := make([]float64, len(m.data))
	for f := range m.data {
		vec[f] = m.data[f][pos]
	}
	return vec
}
