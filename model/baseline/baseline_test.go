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

package baseline

import (
	"testing"

	"github.com/gorse-io/funksvd/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

var ratings = []dataset.Rating{
	{UserId: 1, ItemId: 10, Value: 5},
	{UserId: 1, ItemId: 20, Value: 3},
	{UserId: 2, ItemId: 10, Value: 4},
	{UserId: 2, ItemId: 30, Value: 0},
}

func TestConstant(t *testing.T) {
	assert.Zero(t, Constant{}.Predict(1, 2))
	assert.Equal(t, 3.5, Constant{Value: 3.5}.Predict(100, 200))
}

func TestGlobalMean(t *testing.T) {
	b := NewGlobalMean(ratings)
	assert.Equal(t, 3.0, b.Predict(1, 10))
	assert.Equal(t, 3.0, b.Predict(100, 200))
	assert.Zero(t, NewGlobalMean(nil).Predict(1, 1))
}

func TestItemMean(t *testing.T) {
	b, err := NewItemMean(ratings, 0)
	assert.NoError(t, err)
	// μ = 3, item 10: ((5-3)+(4-3))/2 = 1.5
	assert.InDelta(t, 4.5, b.Predict(1, 10), 1e-12)
	assert.InDelta(t, 3.0, b.Predict(1, 20), 1e-12)
	assert.InDelta(t, 0.0, b.Predict(2, 30), 1e-12)
	// unknown item
	assert.Equal(t, 3.0, b.Predict(1, 1000))
	// damping shrinks offsets toward the mean
	damped, err := NewItemMean(ratings, 1)
	assert.NoError(t, err)
	assert.InDelta(t, 4.0, damped.Predict(1, 10), 1e-12)
	// negative damping
	_, err = NewItemMean(ratings, -1)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestUserItemMean(t *testing.T) {
	b, err := NewUserItemMean(ratings, 0)
	assert.NoError(t, err)
	// user 1 residuals: 5 - 4.5 = 0.5 and 3 - 3 = 0
	assert.InDelta(t, 4.75, b.Predict(1, 10), 1e-12)
	// user 2 residuals: 4 - 4.5 = -0.5 and 0 - 0 = 0
	assert.InDelta(t, 4.25, b.Predict(2, 10), 1e-12)
	// unknown user and item
	assert.InDelta(t, 4.5, b.Predict(1000, 10), 1e-12)
	assert.InDelta(t, 3.25, b.Predict(1, 1000), 1e-12)
	assert.Equal(t, 3.0, b.Predict(1000, 1000))
}

func TestNew(t *testing.T) {
	b, err := New("", 0, 0, ratings)
	assert.NoError(t, err)
	assert.Equal(t, Constant{}, b)
	b, err = New(ConstantName, 2.5, 0, ratings)
	assert.NoError(t, err)
	assert.Equal(t, 2.5, b.Predict(1, 1))
	b, err = New(GlobalMeanName, 0, 0, ratings)
	assert.NoError(t, err)
	assert.IsType(t, &GlobalMean{}, b)
	b, err = New(ItemMeanName, 0, 5, ratings)
	assert.NoError(t, err)
	assert.IsType(t, &ItemMean{}, b)
	b, err = New(UserItemMeanName, 0, 5, ratings)
	assert.NoError(t, err)
	assert.IsType(t, &UserItemMean{}, b)
	_, err = New("unknown", 0, 0, ratings)
	assert.True(t, errors.Is(err, errors.NotSupported))
}
