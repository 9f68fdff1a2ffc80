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
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gorse-io/funksvd/base"
	"github.com/gorse-io/funksvd/base/log"
	"github.com/gorse-io/funksvd/base/progress"
	"github.com/gorse-io/funksvd/dataset"
	"github.com/gorse-io/funksvd/model"
	"github.com/gorse-io/funksvd/model/baseline"
	"github.com/gorse-io/funksvd/model/clamp"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/gorse-io/funksvd/model/funksvd"

// Default hyper-parameters.
const (
	DefaultFeatureCount   = 20
	DefaultLearningRate   = 0.001
	DefaultRegularization = 0.015
	DefaultMaxEpochs      = 100
	DefaultMinEpochs      = 1
	DefaultThreshold      = 1e-5
	DefaultInitValue      = 0.1
)

// Config holds the hyper-parameters and policies of a Trainer.
type Config struct {
	FeatureCount   int
	LearningRate   float64
	Regularization float64
	MaxEpochs      int // per feature
	MinEpochs      int // per feature, before early stopping applies
	Threshold      float64
	InitValue      float64
	Clamp          clamp.Function
	Baseline       baseline.Predictor
}

// NewConfig reads hyper-parameters from params. Missing values fall back to defaults.
func NewConfig(params model.Params, clampFunc clamp.Function, baselinePredictor baseline.Predictor) Config {
	return Config{
		FeatureCount:   params.GetInt(model.NFactors, DefaultFeatureCount),
		LearningRate:   params.GetFloat64(model.Lr, DefaultLearningRate),
		Regularization: params.GetFloat64(model.Reg, DefaultRegularization),
		MaxEpochs:      params.GetInt(model.NEpochs, DefaultMaxEpochs),
		MinEpochs:      params.GetInt(model.MinEpochs, DefaultMinEpochs),
		Threshold:      params.GetFloat64(model.Threshold, DefaultThreshold),
		InitValue:      params.GetFloat64(model.InitValue, DefaultInitValue),
		Clamp:          clampFunc,
		Baseline:       baselinePredictor,
	}
}

// Validate checks the configuration and returns a *ConfigurationError on failure.
func (c Config) Validate() error {
	switch {
	case c.FeatureCount <= 0:
		return &ConfigurationError{Param: string(model.NFactors), Reason: fmt.Sprintf("%d is not positive", c.FeatureCount)}
	case !(c.LearningRate > 0) || math.IsInf(c.LearningRate, 0):
		return &ConfigurationError{Param: string(model.Lr), Reason: fmt.Sprintf("%v is not a positive number", c.LearningRate)}
	case !(c.Regularization >= 0) || math.IsInf(c.Regularization, 0):
		return &ConfigurationError{Param: string(model.Reg), Reason: fmt.Sprintf("%v is not a non-negative number", c.Regularization)}
	case c.MaxEpochs <= 0:
		return &ConfigurationError{Param: string(model.NEpochs), Reason: fmt.Sprintf("%d is not positive", c.MaxEpochs)}
	case c.MinEpochs < 0 || c.MinEpochs > c.MaxEpochs:
		return &ConfigurationError{Param: string(model.MinEpochs), Reason: fmt.Sprintf("%d is not in [0, %d]", c.MinEpochs, c.MaxEpochs)}
	case !(c.Threshold >= 0):
		return &ConfigurationError{Param: string(model.Threshold), Reason: fmt.Sprintf("%v is not a non-negative number", c.Threshold)}
	case math.IsNaN(c.InitValue) || math.IsInf(c.InitValue, 0):
		return &ConfigurationError{Param: string(model.InitValue), Reason: fmt.Sprintf("%v is not finite", c.InitValue)}
	case c.Clamp == nil:
		return &ConfigurationError{Param: "Clamp", Reason: "missing clamping function"}
	case c.Baseline == nil:
		return &ConfigurationError{Param: "Baseline", Reason: "missing baseline"}
	}
	return nil
}

// EpochStats is reported to the epoch listener after every epoch.
type EpochStats struct {
	Feature          int
	Epoch            int
	MeanSquaredError float64
}

// Trainer trains FunkSVD models. Training is sequential, so identical ratings
// and configuration produce bit-identical models.
type Trainer struct {
	config   Config
	listener func(EpochStats)
}

func NewTrainer(config Config) *Trainer {
	return &Trainer{config: config}
}

// SetEpochListener registers a callback invoked after every epoch.
func (t *Trainer) SetEpochListener(listener func(EpochStats)) *Trainer {
	t.listener = listener
	return t
}

// Fit trains a model on ratings, visiting them in the given order. It returns a
// *ConfigurationError, *DataError or *DivergenceError on failure, or the context
// error if ctx is cancelled between epochs. No model is returned on failure.
func (t *Trainer) Fit(ctx context.Context, ratings []dataset.Rating) (*Model, error) {
	if err := t.config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if len(ratings) == 0 {
		return nil, errors.Trace(&DataError{Reason: "no ratings, so no users or items"})
	}
	for i, r := range ratings {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			return nil, errors.Trace(&DataError{Reason: fmt.Sprintf("rating %d is %v", i, r.Value)})
		}
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "Trainer.Fit", trace.WithAttributes(
		attribute.Int("funksvd.ratings", len(ratings)),
		attribute.Int("funksvd.features", t.config.FeatureCount),
		attribute.Float64("funksvd.learning_rate", t.config.LearningRate),
	))
	defer span.End()
	m, err := t.fit(ctx, ratings)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return m, nil
}

func (t *Trainer) fit(ctx context.Context, ratings []dataset.Rating) (*Model, error) {
	start := time.Now()
	userIndex := base.NewIndex(lo.Map(ratings, func(r dataset.Rating, _ int) int64 { return r.UserId }))
	itemIndex := base.NewIndex(lo.Map(ratings, func(r dataset.Rating, _ int) int64 { return r.ItemId }))
	log.Logger().Info("fit funksvd",
		zap.Int("n_ratings", len(ratings)),
		zap.Int("n_users", userIndex.Len()),
		zap.Int("n_items", itemIndex.Len()),
		zap.Int("n_factors", t.config.FeatureCount),
		zap.Float64("lr", t.config.LearningRate),
		zap.Float64("reg", t.config.Regularization),
		zap.Int("n_epochs", t.config.MaxEpochs))

	state := &trainingState{
		ratings:      ratings,
		userPos:      make([]int, len(ratings)),
		itemPos:      make([]int, len(ratings)),
		cache:        make([]float64, len(ratings)),
		userFeatures: newFeatureMatrix(t.config.FeatureCount, userIndex.Len(), t.config.InitValue),
		itemFeatures: newFeatureMatrix(t.config.FeatureCount, itemIndex.Len(), t.config.InitValue),
	}
	for i, r := range ratings {
		state.userPos[i] = lo.Must(userIndex.PositionOf(r.UserId))
		state.itemPos[i] = lo.Must(itemIndex.PositionOf(r.ItemId))
		state.cache[i] = t.config.Baseline.Predict(r.UserId, r.ItemId)
	}

	_, span := progress.Start(ctx, "FunkSVD.Fit", t.config.FeatureCount)
	infos := make([]FeatureInfo, 0, t.config.FeatureCount)
	for f := 0; f < t.config.FeatureCount; f++ {
		info, err := t.trainFeature(ctx, state, f)
		if err != nil {
			span.Fail(err)
			return nil, err
		}
		state.fold(f, t.config.Clamp)
		infos = append(infos, info)
		FeatureEpochsVec.WithLabelValues(strconv.Itoa(f)).Set(float64(info.Epochs))
		FeatureMeanSquaredErrorVec.WithLabelValues(strconv.Itoa(f)).Set(info.MeanSquaredError)
		span.Add(1)
	}
	span.End()

	m, err := NewModel(state.userFeatures.data, state.itemFeatures.data, infos,
		t.config.Clamp, t.config.Baseline, userIndex, itemIndex)
	if err != nil {
		return nil, errors.Trace(err)
	}
	FitSeconds.Set(time.Since(start).Seconds())
	log.Logger().Info("fit funksvd complete",
		zap.Duration("fit_time", time.Since(start)),
		zap.Float64("mse", infos[len(infos)-1].MeanSquaredError))
	return m, nil
}

// trainingState is the mutable state of a training run. It never escapes Fit.
type trainingState struct {
	ratings      []dataset.Rating
	userPos      []int
	itemPos      []int
	cache        []float64 // clamped estimate through the trained features
	userFeatures *FeatureMatrix
	itemFeatures *FeatureMatrix
}

// fold adds a trained feature to the cached estimates.
func (s *trainingState) fold(f int, clampFunc clamp.Function) {
	userRow, itemRow := s.userFeatures.data[f], s.itemFeatures.data[f]
	for i, r := range s.ratings {
		s.cache[i] = clampFunc.Clamp(s.cache[i]+userRow[s.userPos[i]]*itemRow[s.itemPos[i]], r.UserId, r.ItemId)
	}
}

func (t *Trainer) trainFeature(ctx context.Context, state *trainingState, f int) (FeatureInfo, error) {
	var (
		lr       = t.config.LearningRate
		reg      = t.config.Regularization
		userRow  = state.userFeatures.data[f]
		itemRow  = state.itemFeatures.data[f]
		prevMSE  = math.Inf(1)
		mse      float64
		epochRun int
	)
	for epoch := 1; epoch <= t.config.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return FeatureInfo{}, errors.Trace(err)
		}
		var sse float64
		for i, r := range state.ratings {
			u, v := state.userPos[i], state.itemPos[i]
			userValue, itemValue := userRow[u], itemRow[v]
			estimate := t.config.Clamp.Clamp(state.cache[i]+userValue*itemValue, r.UserId, r.ItemId)
			residual := r.Value - estimate
			// both steps read pre-update values
			newUserValue := userValue + lr*(residual*itemValue-reg*userValue)
			newItemValue := itemValue + lr*(residual*userValue-reg*itemValue)
			sse += residual * residual
			if value, ok := firstNonFinite(residual, newUserValue, newItemValue, sse); ok {
				DivergenceTotal.Inc()
				err := &DivergenceError{Feature: f, Epoch: epoch, UserId: r.UserId, ItemId: r.ItemId, Value: value}
				log.Logger().Error("fit funksvd diverged", zap.Error(err))
				return FeatureInfo{}, errors.Trace(err)
			}
			userRow[u], itemRow[v] = newUserValue, newItemValue
		}
		mse = sse / float64(len(state.ratings))
		epochRun = epoch
		log.Logger().Debug(fmt.Sprintf("fit funksvd feature %v epoch %v/%v", f, epoch, t.config.MaxEpochs),
			zap.Float64("mse", mse))
		if t.listener != nil {
			t.listener(EpochStats{Feature: f, Epoch: epoch, MeanSquaredError: mse})
		}
		if epoch >= t.config.MinEpochs && prevMSE-mse < t.config.Threshold {
			break
		}
		prevMSE = mse
	}
	info := newFeatureInfo(f, epochRun, mse, userRow, itemRow)
	log.Logger().Info(fmt.Sprintf("fit funksvd feature %v/%v", f+1, t.config.FeatureCount),
		zap.Int("epochs", info.Epochs),
		zap.Float64("mse", info.MeanSquaredError),
		zap.Float64("min", info.MinValue),
		zap.Float64("max", info.MaxValue))
	return info, nil
}

func firstNonFinite(values ...float64) (float64, bool) {
	for _, value := range values {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return value, true
		}
	}
	return 0, false
}
