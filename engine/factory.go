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
	"fmt"

	"github.com/gorse-io/funksvd/base/log"
	"github.com/gorse-io/funksvd/config"
	"github.com/gorse-io/funksvd/dataset"
	"github.com/gorse-io/funksvd/model/funksvd"
	"github.com/gorse-io/funksvd/storage"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// RatingSource supplies training ratings in a deterministic order.
type RatingSource interface {
	LoadRatings(ctx context.Context) ([]dataset.Rating, error)
}

// BuildError wraps any failure while building an engine. Use errors.As to reach
// the *funksvd.ConfigurationError, *funksvd.DataError or *funksvd.DivergenceError
// behind it.
type BuildError struct {
	Stage string
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("failed to build engine (%s): %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// Factory builds engines from a configuration and a rating source.
type Factory struct {
	config   *config.Config
	source   RatingSource
	listener func(funksvd.EpochStats)
}

func NewFactory(cfg *config.Config, source RatingSource) *Factory {
	return &Factory{config: cfg, source: source}
}

// SetEpochListener registers a callback invoked after every training epoch.
func (f *Factory) SetEpochListener(listener func(funksvd.EpochStats)) *Factory {
	f.listener = listener
	return f
}

// Create loads ratings, fits the baseline and trains a model. Every failure is
// returned as a *BuildError and no engine is returned with it.
func (f *Factory) Create(ctx context.Context) (*Engine, error) {
	if f.config.Model.FitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Model.FitTimeout)
		defer cancel()
	}
	ratings, err := f.source.LoadRatings(ctx)
	if err != nil {
		return nil, &BuildError{Stage: "load ratings", Err: err}
	}
	clampFunc, err := f.config.Clamp.NewFunction()
	if err != nil {
		return nil, &BuildError{Stage: "create clamping function", Err: &funksvd.ConfigurationError{Param: "clamp", Reason: err.Error()}}
	}
	baselinePredictor, err := f.config.Baseline.NewPredictor(ratings)
	if err != nil {
		return nil, &BuildError{Stage: "fit baseline", Err: &funksvd.ConfigurationError{Param: "baseline", Reason: err.Error()}}
	}
	params := f.config.Model.GetParams()
	log.Logger().Info("create engine",
		zap.String("params", params.ToString()),
		zap.String("clamp", f.config.Clamp.Type),
		zap.String("baseline", f.config.Baseline.Type))
	trainer := funksvd.NewTrainer(funksvd.NewConfig(params, clampFunc, baselinePredictor)).
		SetEpochListener(f.listener)
	m, err := trainer.Fit(ctx, ratings)
	if err != nil {
		log.Logger().Error("failed to train model", zap.Error(err))
		return nil, &BuildError{Stage: "train", Err: err}
	}
	return NewEngine(m, f.config.Predict.Jobs), nil
}

// OpenSource opens the rating source named by the configuration: the database if
// set, otherwise the CSV file. The returned function releases the source.
func OpenSource(cfg *config.DataConfig) (RatingSource, func() error, error) {
	if cfg.Database != "" {
		store, err := storage.Open(cfg.Database, cfg.TablePrefix)
		if err != nil {
			return nil, nil, errors.Trace(err)
		}
		log.Logger().Info("open rating database", zap.String("database", log.RedactDBURL(cfg.Database)))
		return store, store.Close, nil
	}
	data, err := dataset.LoadCSV(cfg.Path, cfg.Separator, cfg.Header)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	log.Logger().Info("load ratings from file", zap.String("path", cfg.Path),
		zap.Int("n_ratings", data.Count()),
		zap.Int("n_users", len(data.UserIds())),
		zap.Int("n_items", len(data.ItemIds())),
		zap.Float64("mean", data.Mean()))
	return data, func() error { return nil }, nil
}
