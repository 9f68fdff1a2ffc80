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

package main

import (
	"io"
	"strconv"
	"strings"

	"github.com/gorse-io/funksvd/engine"
	"github.com/gorse-io/funksvd/model/funksvd"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
)

// parsePairs parses user-item pairs written as user:item.
func parsePairs(values []string) ([]engine.Pair, error) {
	pairs := make([]engine.Pair, 0, len(values))
	for _, value := range values {
		user, item, ok := strings.Cut(value, ":")
		if !ok {
			return nil, errors.NotValidf("pair %q", value)
		}
		userId, err := strconv.ParseInt(strings.TrimSpace(user), 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "user id of pair %q", value)
		}
		itemId, err := strconv.ParseInt(strings.TrimSpace(item), 10, 64)
		if err != nil {
			return nil, errors.Annotatef(err, "item id of pair %q", value)
		}
		pairs = append(pairs, engine.Pair{UserId: userId, ItemId: itemId})
	}
	return pairs, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// renderFeatures prints per-feature training statistics.
func renderFeatures(w io.Writer, m *funksvd.Model) error {
	table := tablewriter.NewWriter(w)
	table.Header("Feature", "Epochs", "MSE", "Min", "Max", "User Avg", "Item Avg", "Singular Value")
	for _, info := range m.FeatureInfos() {
		if err := table.Append([]string{
			strconv.Itoa(info.Feature),
			strconv.Itoa(info.Epochs),
			formatFloat(info.MeanSquaredError),
			formatFloat(info.MinValue),
			formatFloat(info.MaxValue),
			formatFloat(info.UserAverage),
			formatFloat(info.ItemAverage),
			formatFloat(info.SingularValue),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

// renderPredictions prints scores of pairs. Pairs scored by the baseline alone
// are marked.
func renderPredictions(w io.Writer, m *funksvd.Model, pairs []engine.Pair, scores []float64) error {
	table := tablewriter.NewWriter(w)
	table.Header("User", "Item", "Score", "Source")
	for i, pair := range pairs {
		source := "model"
		if !m.UserIndex().Contains(pair.UserId) || !m.ItemIndex().Contains(pair.ItemId) {
			source = "baseline"
		}
		if err := table.Append([]string{
			strconv.FormatInt(pair.UserId, 10),
			strconv.FormatInt(pair.ItemId, 10),
			formatFloat(scores[i]),
			source,
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
