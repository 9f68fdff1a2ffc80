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

// Package baseline provides baseline predictors. A factorization model learns
// the residual between the ratings and the baseline estimate.
package baseline

import (
	"math"

	"github.com/gorse-io/funksvd/dataset"
	"github.com/juju/errors"
)

const (
	ConstantName     = "constant"
	GlobalMeanName   = "global_mean"
	ItemMeanName     = "item_mean"
	UserItemMeanName = "user_item_mean"
)

// Predictor produces a baseline score for any user-item pair, including pairs
// never seen in training.
type Predictor interface {
	Predict(userId, itemId int64) float64
}

// Constant predicts the same value for every pair. Constant{} is the zero baseline.
type Constant struct {
	Value float64
}

func (c Constant) Predict(_, _ int64) float64 {
	return c.Value
}

// GlobalMean predicts the mean of all training ratings.
//
//	b_{ui} = μ
type GlobalMean struct {
	Mean float64
}

func NewGlobalMean(ratings []dataset.Rating) *GlobalMean {
	return &GlobalMean{Mean: dataset.Mean(ratings)}
}

func (g *GlobalMean) Predict(_, _ int64) float64 {
	return g.Mean
}

// ItemMean predicts the global mean plus a damped item offset.
//
//	b_{ui} = μ + b_i,  b_i = Σ_{u}(r_{ui} - μ) / (|U_i| + damping)
//
// If item i is unknown, then b_i is assumed to be zero.
type ItemMean struct {
	Mean        float64
	ItemOffsets map[int64]float64
}

func NewItemMean(ratings []dataset.Rating, damping float64) (*ItemMean, error) {
	if damping < 0 || math.IsNaN(damping) {
		return nil, errors.NotValidf("damping %v", damping)
	}
	mu := dataset.Mean(ratings)
	return &ItemMean{
		Mean: mu,
		ItemOffsets: dampedOffsets(ratings, damping, func(r dataset.Rating) (int64, float64) {
			return r.ItemId, r.Value - mu
		}),
	}, nil
}

func (b *ItemMean) Predict(_, itemId int64) float64 {
	return b.Mean + b.ItemOffsets[itemId]
}

// UserItemMean extends ItemMean with a damped user offset over the residuals of
// the item mean baseline.
//
//	b_{ui} = μ + b_i + b_u,  b_u = Σ_{i}(r_{ui} - μ - b_i) / (|I_u| + damping)
//
// If user u is unknown, then b_u is assumed to be zero.
type UserItemMean struct {
	*ItemMean
	UserOffsets map[int64]float64
}

func NewUserItemMean(ratings []dataset.Rating, damping float64) (*UserItemMean, error) {
	itemMean, err := NewItemMean(ratings, damping)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &UserItemMean{
		ItemMean: itemMean,
		UserOffsets: dampedOffsets(ratings, damping, func(r dataset.Rating) (int64, float64) {
			return r.UserId, r.Value - itemMean.Predict(r.UserId, r.ItemId)
		}),
	}, nil
}

func (b *UserItemMean) Predict(userId, itemId int64) float64 {
	return b.ItemMean.Predict(userId, itemId) + b.UserOffsets[userId]
}

// New creates a baseline by name. value is used by the constant baseline and
// damping by the mean offset baselines.
func New(name string, value, damping float64, ratings []dataset.Rating) (Predictor, error) {
	switch name {
	case ConstantName, "":
		return Constant{Value: value}, nil
	case GlobalMeanName:
		return NewGlobalMean(ratings), nil
	case ItemMeanName:
		return NewItemMean(ratings, damping)
	case UserItemMeanName:
		return NewUserItemMean(ratings, damping)
	}
	return nil, errors.NotSupportedf("baseline %q", name)
}

func dampedOffsets(ratings []dataset.Rating, damping float64, residual func(dataset.Rating) (int64, float64)) map[int64]float64 {
	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for _, r := range ratings {
		id, v := residual(r)
		sums[id] += v
		counts[id]++
	}
	offsets := make(map[int64]float64, len(sums))
	for id, sum := range sums {
		offsets[id] = sum / (float64(counts[id]) + damping)
	}
	return offsets
}
