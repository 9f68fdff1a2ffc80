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

package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestDataset(t *testing.T) {
	d := NewDataset([]Rating{{1, 10, 5}, {1, 20, 3}})
	d.AddRating(2, 10, 4)
	assert.Equal(t, 3, d.Count())
	assert.Equal(t, []int64{1, 2}, d.UserIds())
	assert.Equal(t, []int64{10, 20}, d.ItemIds())
	assert.Equal(t, 4.0, d.Mean())
	ratings, err := d.LoadRatings(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []Rating{{1, 10, 5}, {1, 20, 3}, {2, 10, 4}}, ratings)
	// ratings are copied
	ratings[0].Value = 100
	assert.Equal(t, 5.0, d.Ratings()[0].Value)
	// empty dataset
	assert.Zero(t, NewDataset(nil).Mean())
	assert.Empty(t, NewDataset(nil).UserIds())
}

func TestDataset_LoadRatingsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDataset([]Rating{{1, 1, 1}}).LoadRatings(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseCSV(t *testing.T) {
	d, err := ParseCSV(strings.NewReader("user,item,rating\n1,10,5\n1,20,3.5\n\n2,10,4,881250949\n"), ",", true)
	assert.NoError(t, err)
	assert.Equal(t, []Rating{{1, 10, 5}, {1, 20, 3.5}, {2, 10, 4}}, d.Ratings())
	// tab separated without header
	d, err = ParseCSV(strings.NewReader("196\t242\t3\t881250949\n186\t302\t3\t891717742\n"), "\t", false)
	assert.NoError(t, err)
	assert.Equal(t, []Rating{{196, 242, 3}, {186, 302, 3}}, d.Ratings())
}

func TestParseCSV_LeadingBlankLines(t *testing.T) {
	d, err := ParseCSV(strings.NewReader("\nuser,item,rating\n1,2,3\n"), ",", true)
	assert.NoError(t, err)
	assert.Equal(t, []Rating{{1, 2, 3}}, d.Ratings())
	d, err = ParseCSV(strings.NewReader("\n\n1,2,3\n4,5,1\n"), ",", false)
	assert.NoError(t, err)
	assert.Equal(t, []Rating{{1, 2, 3}, {4, 5, 1}}, d.Ratings())
}

func TestMean(t *testing.T) {
	assert.Zero(t, Mean(nil))
	assert.Equal(t, 2.5, Mean([]Rating{{1, 2, 1}, {1, 3, 4}}))
}

func TestParseCSV_Invalid(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("1,10\n"), ",", false)
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = ParseCSV(strings.NewReader("a,10,5\n"), ",", false)
	assert.ErrorContains(t, err, "line 1: user id")
	_, err = ParseCSV(strings.NewReader("1,10,5\n1,b,5\n"), ",", false)
	assert.ErrorContains(t, err, "line 2: item id")
	_, err = ParseCSV(strings.NewReader("1,10,high\n"), ",", false)
	assert.ErrorContains(t, err, "line 1: rating")
	_, err = ParseCSV(strings.NewReader("1,10,NaN\n"), ",", false)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ratings.csv")
	assert.NoError(t, os.WriteFile(path, []byte("1,10,5\n2,20,1\n"), 0644))
	d, err := LoadCSV(path, ",", false)
	assert.NoError(t, err)
	assert.Equal(t, 2, d.Count())
	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"), ",", false)
	assert.Error(t, err)
}
