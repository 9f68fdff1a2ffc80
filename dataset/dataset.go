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
	"bufio"
	"context"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gorse-io/funksvd/base"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// Rating is a (user, item, rating) triple.
type Rating struct {
	UserId int64
	ItemId int64
	Value  float64
}

// Dataset holds rating triples in insertion order. Training visits ratings in
// this order, so two datasets loaded from the same file train identically.
type Dataset struct {
	ratings []Rating
}

func NewDataset(ratings []Rating) *Dataset {
	return &Dataset{ratings: slices.Clone(ratings)}
}

func (d *Dataset) AddRating(userId, itemId int64, value float64) {
	d.ratings = append(d.ratings, Rating{UserId: userId, ItemId: itemId, Value: value})
}

func (d *Dataset) Count() int {
	return len(d.ratings)
}

// Ratings returns a copy of the ratings.
func (d *Dataset) Ratings() []Rating {
	return slices.Clone(d.ratings)
}

// LoadRatings returns the ratings. Dataset is a rating source for the engine factory.
func (d *Dataset) LoadRatings(ctx context.Context) ([]Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return d.Ratings(), nil
}

// UserIds returns distinct user IDs in order of first encounter.
func (d *Dataset) UserIds() []int64 {
	return lo.Uniq(lo.Map(d.ratings, func(r Rating, _ int) int64 { return r.UserId }))
}

// ItemIds returns distinct item IDs in order of first encounter.
func (d *Dataset) ItemIds() []int64 {
	return lo.Uniq(lo.Map(d.ratings, func(r Rating, _ int) int64 { return r.ItemId }))
}

// Mean returns the mean rating. It is zero for an empty dataset.
func (d *Dataset) Mean() float64 {
	return Mean(d.ratings)
}

// Mean returns the mean of ratings, or zero if there are none.
func Mean(ratings []Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	return lo.SumBy(ratings, func(r Rating) float64 { return r.Value }) / float64(len(ratings))
}

// LoadCSV loads ratings from a file. See ParseCSV for the format.
func LoadCSV(path, sep string, header bool) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return ParseCSV(file, sep, header)
}

// ParseCSV parses ratings from lines of "user<sep>item<sep>rating". Extra columns
// such as timestamps are ignored. The first non-blank line is skipped if header
// is set.
func ParseCSV(r io.Reader, sep string, header bool) (*Dataset, error) {
	dataset := &Dataset{}
	var parseErr error
	skipHeader := header
	err := base.ReadLines(bufio.NewScanner(r), sep, func(lineNumber int, fields []string) bool {
		if skipHeader {
			skipHeader = false
			return true
		}
		if len(fields) < 3 {
			parseErr = errors.NotValidf("line %d: expect at least 3 fields, got %d", lineNumber+1, len(fields))
			return false
		}
		userId, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			parseErr = errors.Annotatef(err, "line %d: user id", lineNumber+1)
			return false
		}
		itemId, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			parseErr = errors.Annotatef(err, "line %d: item id", lineNumber+1)
			return false
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			parseErr = errors.Annotatef(err, "line %d: rating", lineNumber+1)
			return false
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			parseErr = errors.NotValidf("line %d: rating %v", lineNumber+1, value)
			return false
		}
		dataset.AddRating(userId, itemId, value)
		return true
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	return dataset, nil
}
