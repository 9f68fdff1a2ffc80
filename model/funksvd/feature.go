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
	"gonum.org/v1/gonum/floats"
)

// FeatureInfo is a diagnostic snapshot of a trained feature. It has no effect on
// prediction.
type FeatureInfo struct {
	Feature          int
	MinValue         float64 // minimum over the user and item rows
	MaxValue         float64 // maximum over the user and item rows
	Epochs           int
	MeanSquaredError float64 // of the last epoch
	UserAverage      float64
	ItemAverage      float64
	SingularValue    float64 // product of the norms of the user and item rows
}

func newFeatureInfo(feature, epochs int, mse float64, userRow, itemRow []float64) FeatureInfo {
	return FeatureInfo{
		Feature:          feature,
		MinValue:         min(floats.Min(userRow), floats.Min(itemRow)),
		MaxValue:         max(floats.Max(userRow), floats.Max(itemRow)),
		Epochs:           epochs,
		MeanSquaredError: mse,
		UserAverage:      floats.Sum(userRow) / float64(len(userRow)),
		ItemAverage:      floats.Sum(itemRow) / float64(len(itemRow)),
		SingularValue:    floats.Norm(userRow, 2) * floats.Norm(itemRow, 2),
	}
}
