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

package mock

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethcore "github.com/ethereum/go-ethereum/core"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-middleware/core"
	"github.com/erigontech/erigon-middleware/core/state"
	"github.com/erigontech/erigon-middleware/db/kv"
	"github.com/erigontech/erigon-middleware/db/kv/memdb"
	"github.com/erigontech/erigon-middleware/db/rawdb"
	"github.com/erigontech/erigon-middleware/eth/stagedsync/stages"
	"github.com/erigontech/erigon-middleware/execution/types"
)

// MockChain is an in-memory database seeded with a genesis block, to which tests append
// canonical and side blocks exactly the way the sync stages lay them out.
type MockChain struct {
	Ctx         context.Context
	Log         log.Logger
	tb          testing.TB
	DB          kv.RwDB
	ChainConfig *params.ChainConfig
	Genesis     *types.Block
	Key         *ecdsa.PrivateKey
	Address     common.Address

	canonical []*types.Block
}

// BlockGen describes the content of an appended block.
type BlockGen struct {
	Txs     []types.Transaction
	Senders []common.Address // defaults to the mock's Address for every transaction
	Uncles  []*types.Header

	Coinbase   common.Address
	GasLimit   uint64 // defaults to the parent's
	BaseFee    *uint256.Int
	Difficulty *uint256.Int
	Extra      []byte

	// StateChanges applies the post-state of the block: the mock does not execute blocks.
	StateChanges func(w *state.PlainStateWriter) error
}

// Mock is convenience function to create a mock with some pre-set values
func Mock(tb testing.TB) *MockChain {
	funds := big.NewInt(1 * params.Ether)
	key, _ := crypto.HexToECDSA("b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	address := crypto.PubkeyToAddress(key.PublicKey)
	gspec := &gethcore.Genesis{
		Config:   params.AllEthashProtocolChanges,
		GasLimit: 30_000_000,
		Alloc: gethtypes.GenesisAlloc{
			address: {Balance: funds},
		},
	}
	return MockWithGenesis(tb, gspec, key)
}

func MockWithGenesis(tb testing.TB, gspec *gethcore.Genesis, key *ecdsa.PrivateKey) *MockChain {
	tb.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)
	logger := log.New("mock", tb.Name())
	logger.SetHandler(log.DiscardHandler())

	m := &MockChain{
		Ctx:         ctx,
		Log:         logger,
		tb:          tb,
		DB:          memdb.NewTestDB(tb),
		ChainConfig: gspec.Config,
		Key:         key,
	}
	if key != nil {
		m.Address = crypto.PubkeyToAddress(key.PublicKey)
	}
	_, genesis, err := core.CommitGenesisBlock(ctx, m.DB, gspec, logger)
	if err != nil {
		tb.Fatal(err)
	}
	m.Genesis = genesis
	m.canonical = []*types.Block{genesis}
	return m
}

// Head is the last canonical block.
func (m *MockChain) Head() *types.Block {
	return m.canonical[len(m.canonical)-1]
}

// CanonicalBlock returns the canonical block at height n.
func (m *MockChain) CanonicalBlock(n uint64) *types.Block {
	return m.canonical[n]
}

func (m *MockChain) makeBlock(parent *types.Block, gen BlockGen) (*types.Block, []common.Address) {
	header := &types.Header{
		ParentHash:  parent.Hash(),
		UncleHash:   types.CalcUncleHash(gen.Uncles),
		Coinbase:    gen.Coinbase,
		TxHash:      types.DeriveSha(types.Transactions(gen.Txs)),
		ReceiptHash: types.EmptyRootHash,
		Difficulty:  uint256.NewInt(1),
		Number:      parent.NumberU64() + 1,
		GasLimit:    parent.GasLimit(),
		Time:        parent.Time() + 12,
		Extra:       gen.Extra,
		BaseFee:     gen.BaseFee,
	}
	if gen.GasLimit != 0 {
		header.GasLimit = gen.GasLimit
	}
	if gen.Difficulty != nil {
		header.Difficulty = gen.Difficulty
	}
	if header.BaseFee == nil && m.ChainConfig.IsLondon(header.NumberBig()) {
		header.BaseFee = new(uint256.Int)
	}
	senders := gen.Senders
	if senders == nil {
		senders = make([]common.Address, len(gen.Txs))
		for i := range senders {
			senders[i] = m.Address
		}
	}
	return types.NewBlockFromStorage(header, gen.Txs, gen.Uncles), senders
}

// AppendBlock writes a new canonical block on top of Head and advances every stage to it.
func (m *MockChain) AppendBlock(gen BlockGen) *types.Block {
	m.tb.Helper()
	block, senders := m.makeBlock(m.Head(), gen)
	if err := m.DB.Update(m.Ctx, func(tx kv.RwTx) error {
		if err := rawdb.WriteBlock(tx, block, senders); err != nil {
			return err
		}
		if err := rawdb.WriteCanonicalHash(tx, block.Hash(), block.NumberU64()); err != nil {
			return err
		}
		if err := rawdb.WriteTxLookupEntries(tx, block); err != nil {
			return err
		}
		if gen.StateChanges != nil {
			if err := gen.StateChanges(state.NewPlainStateWriter(tx, block.NumberU64())); err != nil {
				return err
			}
		}
		for _, stage := range stages.AllStages {
			if err := stages.SaveStageProgress(tx, stage, block.NumberU64()); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		m.tb.Fatal(err)
	}
	m.canonical = append(m.canonical, block)
	return block
}

// AppendSideBlock writes a block on top of parent without making it canonical.
func (m *MockChain) AppendSideBlock(parent *types.Block, gen BlockGen) *types.Block {
	m.tb.Helper()
	block, senders := m.makeBlock(parent, gen)
	if err := m.DB.Update(m.Ctx, func(tx kv.RwTx) error {
		return rawdb.WriteBlock(tx, block, senders)
	}); err != nil {
		m.tb.Fatal(err)
	}
	return block
}

// Transfer builds a legacy value transfer from the mock's Address. Signatures are not checked
// anywhere on the read path so the signature values only make the hash unique.
func (m *MockChain) Transfer(nonce uint64, to common.Address, value uint64) *types.LegacyTx {
	txn := &types.LegacyTx{
		CommonTx: types.CommonTx{Nonce: nonce, GasLimit: params.TxGas, To: &to, Value: uint256.NewInt(value)},
		GasPrice: uint256.NewInt(1),
	}
	txn.V.SetUint64(27)
	txn.R.SetUint64(nonce + 1)
	txn.S.SetUint64(1)
	return txn
}

// Create builds a legacy contract creation from the mock's Address.
func (m *MockChain) Create(nonce uint64, gas uint64, initCode []byte) *types.LegacyTx {
	txn := &types.LegacyTx{
		CommonTx: types.CommonTx{Nonce: nonce, GasLimit: gas, Value: new(uint256.Int), Data: initCode},
		GasPrice: uint256.NewInt(1),
	}
	txn.V.SetUint64(27)
	txn.R.SetUint64(nonce + 1)
	txn.S.SetUint64(2)
	return txn
}
