// Copyright 2020 gorse Project Authors
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

package base

import (
	"fmt"

	"github.com/juju/errors"
)

// Index manages the map between sparse identifiers and dense positions. A sparse
// identifier is a user ID or an item ID. The dense position addresses a column of
// a feature matrix.
//
// An Index is immutable once built, so it is safe for concurrent readers.
type Index struct {
	positions   map[int64]int // sparse ID -> dense position
	identifiers []int64       // dense position -> sparse ID
}

// NewIndex creates an Index from identifiers. Duplicates are dropped and positions
// are assigned in order of first encounter, so identical input always yields
// identical positions.
func NewIndex(identifiers []int64) *Index {
	idx := &Index{
		positions:   make(map[int64]int, len(identifiers)),
		identifiers: make([]int64, 0, len(identifiers)),
	}
	for _, id := range identifiers {
		idx.add(id)
	}
	return idx
}

func (idx *Index) add(id int64) {
	if _, exist := idx.positions[id]; !exist {
		idx.positions[id] = len(idx.identifiers)
		idx.identifiers = append(idx.identifiers, id)
	}
}

// Len returns the number of indexed identifiers.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.identifiers)
}

// Contains checks whether an identifier is indexed.
func (idx *Index) Contains(id int64) bool {
	if idx == nil {
		return false
	}
	_, exist := idx.positions[id]
	return exist
}

// PositionOf converts a sparse identifier to a dense position. A NotFound error
// is returned if the identifier doesn't exist.
func (idx *Index) PositionOf(id int64) (int, error) {
	if idx != nil {
		if pos, exist := idx.positions[id]; exist {
			return pos, nil
		}
	}
	return -1, errors.NotFoundf("identifier %d", id)
}

// IdentifierAt converts a dense position to a sparse identifier.
func (idx *Index) IdentifierAt(pos int) int64 {
	if pos < 0 || pos >= idx.Len() {
		panic(fmt.Sprintf("position %d out of range [0, %d)", pos, idx.Len()))
	}
	return idx.identifiers[pos]
}

// Identifiers returns all identifiers ordered by position.
func (idx *Index) Identifiers() []int64 {
	if idx == nil {
		return nil
	}
	ids := make([]int64, len(idx.identifiers))
	copy(ids, idx.identifiers)
	return ids
}
