// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package rpchelper

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotFound is the root of every "does not exist" error. Outward operations turn it into a nil result.
	ErrNotFound = errors.New("not found")
	// ErrConversion is returned when a value cannot be represented on the other side of a type boundary.
	ErrConversion = errors.New("conversion error")
	// ErrExecution wraps failures to set up or run the EVM (not EVM reverts).
	ErrExecution = errors.New("execution error")
	// ErrInconsistency is returned when indices and data in the database disagree.
	ErrInconsistency = errors.New("database inconsistency")
	// ErrChainSpecMissing is returned when no chain config is stored for the genesis.
	ErrChainSpecMissing = fmt.Errorf("chain config %w", ErrNotFound)
)

// BlockNotFoundErr is returned when a block identifier does not resolve to a canonical block.
type BlockNotFoundErr struct {
	Number *uint64
	Hash   *common.Hash
}

func (e BlockNotFoundErr) Error() string {
	switch {
	case e.Hash != nil:
		return fmt.Sprintf("block %x not found", *e.Hash)
	case e.Number != nil:
		return fmt.Sprintf("block %d not found", *e.Number)
	default:
		return "block not found"
	}
}

func (e BlockNotFoundErr) Is(target error) bool {
	return target == ErrNotFound
}

func blockNumberNotFound(n uint64) error { return BlockNotFoundErr{Number: &n} }
func blockHashNotFound(h common.Hash) error { return BlockNotFoundErr{Hash: &h} }

// IsNotFound reports whether err means absence.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBlockNotFound reports whether err comes from resolving a block identifier that does not
// name a canonical block.
func IsBlockNotFound(err error) bool {
	var notFound BlockNotFoundErr
	return errors.As(err, &notFound)
}
