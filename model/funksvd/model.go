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

// Package funksvd implements the FunkSVD factorization model and its
// feature-by-feature gradient descent trainer.
//
// The score of user u for item i is accumulated feature by feature on top of
// the baseline, applying the clamping function after every partial sum:
//
//	s_0 = b_{ui}
//	s_{f+1} = clamp(s_f + p_{f,u} q_{f,i})
//
// Training visits features in the same order, so a trained model reproduces the
// estimates it was trained under.
package funksvd

import (
	"github.com/gorse-io/funksvd/base"
	"github.com/gorse-io/funksvd/model/baseline"
	"github.com/gorse-io/funksvd/model/clamp"
	"github.com/juju/errors"
)

// Model is a trained FunkSVD model. It is immutable and safe for concurrent use.
type Model struct {
	featureCount int
	userFeatures *FeatureMatrix
	itemFeatures *FeatureMatrix
	featureInfos []FeatureInfo
	clamp        clamp.Function
	baseline     baseline.Predictor
	userIndex    *base.Index
	itemIndex    *base.Index
}

// NewModel assembles a model. The feature count is the length of featureInfos.
// Both matrices are feature-major and copied.
func NewModel(userFeatures, itemFeatures [][]float64, featureInfos []FeatureInfo,
	clampFunc clamp.Function, baselinePredictor baseline.Predictor, userIndex, itemIndex *base.Index) (*Model, error) {
	if clampFunc == nil {
		return nil, errors.NotValidf("nil clamping function")
	}
	if baselinePredictor == nil {
		return nil, errors.NotValidf("nil baseline")
	}
	if userIndex == nil || itemIndex == nil {
		return nil, errors.NotValidf("nil index")
	}
	featureCount := len(featureInfos)
	if len(userFeatures) != featureCount {
		return nil, errors.NotValidf("%d user feature rows for %d features", len(userFeatures), featureCount)
	}
	if len(itemFeatures) != featureCount {
		return nil, errors.NotValidf("%d item feature rows for %d features", len(itemFeatures), featureCount)
	}
	for f := 0; f < featureCount; f++ {
		if featureInfos[f].Feature != f {
			return nil, errors.NotValidf("feature info %d labeled as feature %d", f, featureInfos[f].Feature)
		}
		if len(userFeatures[f]) != userIndex.Len() {
			return nil, errors.NotValidf("user feature %d with %d columns for %d users", f, len(userFeatures[f]), userIndex.Len())
		}
		if len(itemFeatures[f]) != itemIndex.Len() {
			return nil, errors.NotValidf("item feature %d with %d columns for %d items", f, len(itemFeatures[f]), itemIndex.Len())
		}
	}
	return &Model{
		featureCount: featureCount,
		userFeatures: copyFeatureMatrix(userFeatures, userIndex.Len()),
		itemFeatures: copyFeatureMatrix(itemFeatures, itemIndex.Len()),
		featureInfos: append([]FeatureInfo(nil), featureInfos...),
		clamp:        clampFunc,
		baseline:     baselinePredictor,
		userIndex:    userIndex,
		itemIndex:    itemIndex,
	}, nil
}

// Predict scores an item for a user. Unknown users or items fail with a
// NotFound error, leaving the fallback to the caller.
func (m *Model) Predict(userId, itemId int64) (float64, error) {
	userPos, err := m.userIndex.PositionOf(userId)
	if err != nil {
		return 0, errors.Annotate(err, "user")
	}
	itemPos, err := m.itemIndex.PositionOf(itemId)
	if err != nil {
		return 0, errors.Annotate(err, "item")
	}
	return m.predict(userId, itemId, userPos, itemPos), nil
}

func (m *Model) predict(userId, itemId int64, userPos, itemPos int) float64 {
	score := m.baseline.Predict(userId, itemId)
	for f := 0; f < m.featureCount; f++ {
		score = m.clamp.Clamp(score+m.userFeatures.data[f][userPos]*m.itemFeatures.data[f][itemPos], userId, itemId)
	}
	return score
}

func (m *Model) FeatureCount() int {
	return m.featureCount
}

// FeatureInfo returns the diagnostics of feature f. It panics if f is out of range.
func (m *Model) FeatureInfo(f int) FeatureInfo {
	return m.featureInfos[f]
}

func (m *Model) FeatureInfos() []FeatureInfo {
	return append([]FeatureInfo(nil), m.featureInfos...)
}

func (m *Model) UserCount() int {
	return m.userIndex.Len()
}

func (m *Model) ItemCount() int {
	return m.itemIndex.Len()
}

func (m *Model) UserFeatures() *FeatureMatrix {
	return m.userFeatures
}

func (m *Model) ItemFeatures() *FeatureMatrix {
	return m.itemFeatures
}

func (m *Model) ClampingFunction() clamp.Function {
	return m.clamp
}

func (m *Model) Baseline() baseline.Predictor {
	return m.baseline
}

func (m *Model) UserIndex() *base.Index {
	return m.userIndex
}

func (m *Model) ItemIndex() *base.Index {
	return m.itemIndex
}

// UserVector returns a copy of the latent vector of a user.
func (m *Model) UserVector(userId int64) ([]float64, error) {
	pos, err := m.userIndex.PositionOf(userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return m.userFeatures.Column(pos), nil
}

// ItemVector returns a copy of the latent vector of an item.
func (m *Model) ItemVector(itemId int64) ([]float64, error) {
	pos, err := m.itemIndex.PositionOf(itemId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return m.itemFeatures.Column(pos), nil
}
