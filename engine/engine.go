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

package engine

import (
	"context"

	"github.com/gorse-io/funksvd/base/log"
	"github.com/gorse-io/funksvd/common/parallel"
	"github.com/gorse-io/funksvd/model/funksvd"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Pair is a user-item pair to score.
type Pair struct {
	UserId int64
	ItemId int64
}

// Engine serves predictions of a trained model. It is safe for concurrent use.
type Engine struct {
	model *funksvd.Model
	jobs  int
}

func NewEngine(m *funksvd.Model, jobs int) *Engine {
	return &Engine{model: m, jobs: max(jobs, 1)}
}

func (e *Engine) Model() *funksvd.Model {
	return e.model
}

// Predict scores an item for a user. Pairs with an unknown user or item fall back
// to the baseline.
func (e *Engine) Predict(userId, itemId int64) float64 {
	score, err := e.model.Predict(userId, itemId)
	if err != nil {
		if !errors.Is(err, errors.NotFound) {
			log.Logger().Error("failed to predict", zap.Int64("user_id", userId), zap.Int64("item_id", itemId), zap.Error(err))
		} else {
			log.Logger().Debug("fallback to baseline", zap.Int64("user_id", userId), zap.Int64("item_id", itemId), zap.Error(err))
		}
		return e.model.Baseline().Predict(userId, itemId)
	}
	return score
}

// PredictBatch scores pairs concurrently. Scores are aligned with pairs.
func (e *Engine) PredictBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	if err := parallel.For(ctx, len(pairs), e.jobs, func(jobId int) {
		scores[jobId] = e.Predict(pairs[jobId].UserId, pairs[jobId].ItemId)
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return scores, nil
}
