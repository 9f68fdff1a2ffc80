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
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/funksvd/base/log"
	"github.com/gorse-io/funksvd/config"
	"github.com/gorse-io/funksvd/dataset"
	"github.com/gorse-io/funksvd/model/funksvd"
	"github.com/gorse-io/funksvd/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func init() {
	log.CloseLogger()
}

type failingSource struct{}

func (failingSource) LoadRatings(context.Context) ([]dataset.Rating, error) {
	return nil, errors.New("connection refused")
}

func syntheticDataset() *dataset.Dataset {
	d := &dataset.Dataset{}
	for u := int64(1); u <= 6; u++ {
		for i := int64(1); i <= 5; i++ {
			if (u*i)%4 != 0 {
				d.AddRating(u, i, float64(1+(u+i)%5))
			}
		}
	}
	return d
}

type FactoryTestSuite struct {
	suite.Suite
	config *config.Config
}

func (suite *FactoryTestSuite) SetupTest() {
	suite.config = config.GetDefaultConfig()
	suite.config.Model.FeatureCount = 3
	suite.config.Model.MaxEpochs = 20
	suite.config.Model.LearningRate = 0.01
	suite.config.Clamp = config.ClampConfig{Type: "range", Min: lo.ToPtr(1.0), Max: lo.ToPtr(5.0)}
	suite.config.Predict.Jobs = 4
}

func (suite *FactoryTestSuite) TestCreate() {
	var stats []funksvd.EpochStats
	engine, err := NewFactory(suite.config, syntheticDataset()).
		SetEpochListener(func(s funksvd.EpochStats) { stats = append(stats, s) }).
		Create(context.Background())
	suite.NoError(err)
	m := engine.Model()
	suite.Equal(3, m.FeatureCount())
	suite.Equal(6, m.UserCount())
	suite.Equal(5, m.ItemCount())
	suite.NotEmpty(stats)
	suite.Equal(2, stats[len(stats)-1].Feature)
	// known pair
	score, err := m.Predict(1, 1)
	suite.NoError(err)
	suite.Equal(score, engine.Predict(1, 1))
	suite.GreaterOrEqual(score, 1.0)
	suite.LessOrEqual(score, 5.0)
	// unknown pairs fall back to the baseline
	suite.Equal(m.Baseline().Predict(100, 1), engine.Predict(100, 1))
	suite.Equal(m.Baseline().Predict(1, 100), engine.Predict(1, 100))
}

func (suite *FactoryTestSuite) TestPredictBatch() {
	engine, err := NewFactory(suite.config, syntheticDataset()).Create(context.Background())
	suite.NoError(err)
	var pairs []Pair
	for u := int64(0); u <= 7; u++ {
		for i := int64(0); i <= 6; i++ {
			pairs = append(pairs, Pair{UserId: u, ItemId: i})
		}
	}
	scores, err := engine.PredictBatch(context.Background(), pairs)
	suite.NoError(err)
	suite.Len(scores, len(pairs))
	for i, pair := range pairs {
		suite.Equal(engine.Predict(pair.UserId, pair.ItemId), scores[i])
	}
	// cancelled
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.PredictBatch(ctx, pairs)
	suite.ErrorIs(err, context.Canceled)
}

func (suite *FactoryTestSuite) TestDeterministic() {
	a, err := NewFactory(suite.config, syntheticDataset()).Create(context.Background())
	suite.NoError(err)
	b, err := NewFactory(suite.config, syntheticDataset()).Create(context.Background())
	suite.NoError(err)
	for f := 0; f < 3; f++ {
		suite.Equal(a.Model().UserFeatures().Row(f), b.Model().UserFeatures().Row(f))
		suite.Equal(a.Model().ItemFeatures().Row(f), b.Model().ItemFeatures().Row(f))
	}
}

func (suite *FactoryTestSuite) TestSourceError() {
	engine, err := NewFactory(suite.config, failingSource{}).Create(context.Background())
	suite.Nil(engine)
	var buildErr *BuildError
	suite.True(errors.As(err, &buildErr))
	suite.Equal("load ratings", buildErr.Stage)
	suite.ErrorContains(err, "connection refused")
}

func (suite *FactoryTestSuite) TestDataError() {
	engine, err := NewFactory(suite.config, &dataset.Dataset{}).Create(context.Background())
	suite.Nil(engine)
	var buildErr *BuildError
	suite.True(errors.As(err, &buildErr))
	var dataErr *funksvd.DataError
	suite.True(errors.As(err, &dataErr))
}

func (suite *FactoryTestSuite) TestConfigurationError() {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.Model.FeatureCount = 0 },
		func(c *config.Config) { c.Model.LearningRate = -1 },
		func(c *config.Config) { c.Clamp = config.ClampConfig{Type: "range", Min: lo.ToPtr(1.0)} },
		func(c *config.Config) { c.Clamp = config.ClampConfig{Type: "sigmoid"} },
		func(c *config.Config) { c.Baseline = config.BaselineConfig{Type: "median"} },
		func(c *config.Config) { c.Baseline = config.BaselineConfig{Type: "item_mean", Damping: -1} },
	} {
		suite.SetupTest()
		mutate(suite.config)
		engine, err := NewFactory(suite.config, syntheticDataset()).Create(context.Background())
		suite.Nil(engine)
		var buildErr *BuildError
		suite.True(errors.As(err, &buildErr))
		var configErr *funksvd.ConfigurationError
		suite.True(errors.As(err, &configErr), "%v", err)
	}
}

func (suite *FactoryTestSuite) TestDivergenceError() {
	suite.config.Model.LearningRate = 1e6
	suite.config.Model.Regularization = 0
	suite.config.Model.MinEpochs = 20
	suite.config.Clamp = config.ClampConfig{Type: "identity"}
	suite.config.Baseline = config.BaselineConfig{Type: "constant"}
	engine, err := NewFactory(suite.config, syntheticDataset()).Create(context.Background())
	suite.Nil(engine)
	var divergenceErr *funksvd.DivergenceError
	suite.True(errors.As(err, &divergenceErr), "%v", err)
}

func (suite *FactoryTestSuite) TestCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine, err := NewFactory(suite.config, syntheticDataset()).Create(ctx)
	suite.Nil(engine)
	suite.ErrorIs(err, context.Canceled)
}

func TestFactory(t *testing.T) {
	suite.Run(t, new(FactoryTestSuite))
}

func TestOpenSource_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.csv")
	assert.NoError(t, os.WriteFile(path, []byte("user\titem\trating\n1\t10\t5\n2\t10\t3\n"), 0644))
	source, closer, err := OpenSource(&config.DataConfig{Path: path, Separator: "\t", Header: true})
	assert.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()
	ratings, err := source.LoadRatings(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []dataset.Rating{{UserId: 1, ItemId: 10, Value: 5}, {UserId: 2, ItemId: 10, Value: 3}}, ratings)

	_, _, err = OpenSource(&config.DataConfig{Path: filepath.Join(t.TempDir(), "missing.csv"), Separator: ","})
	assert.Error(t, err)
}

func TestOpenSource_Database(t *testing.T) {
	path := fmt.Sprintf("sqlite://%s/ratings.db", t.TempDir())
	store, err := storage.Open(path, "")
	assert.NoError(t, err)
	assert.NoError(t, store.Init())
	expected := syntheticDataset().Ratings()
	assert.NoError(t, store.InsertRatings(context.Background(), expected))
	assert.NoError(t, store.Close())

	source, closer, err := OpenSource(&config.DataConfig{Database: path})
	assert.NoError(t, err)
	defer func() { assert.NoError(t, closer()) }()
	ratings, err := source.LoadRatings(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, expected, ratings)

	// a model trained from the database matches one trained from memory
	cfg := config.GetDefaultConfig()
	cfg.Model.FeatureCount = 2
	cfg.Model.MaxEpochs = 10
	fromDatabase, err := NewFactory(cfg, source).Create(context.Background())
	assert.NoError(t, err)
	fromMemory, err := NewFactory(cfg, syntheticDataset()).Create(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, fromMemory.Model().UserFeatures().Row(1), fromDatabase.Model().UserFeatures().Row(1))

	_, _, err = OpenSource(&config.DataConfig{Database: "redis://localhost:6379"})
	assert.True(t, errors.Is(err, errors.NotSupported))
}
