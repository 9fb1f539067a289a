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

package ethapi

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/erigontech/erigon-middleware/execution/types"
)

func u256ToHex(v *uint256.Int) *hexutil.Big {
	if v == nil {
		return nil
	}
	return (*hexutil.Big)(v.ToBig())
}

// RPCMarshalHeader converts the given header to the RPC output .
func RPCMarshalHeader(head *types.Header) map[string]interface{} {
	result := map[string]interface{}{
		"number":           (*hexutil.Big)(head.NumberBig()),
		"hash":             head.Hash(),
		"parentHash":       head.ParentHash,
		"nonce":            hexutil.Bytes(head.Nonce[:]),
		"mixHash":          head.MixDigest,
		"sha3Uncles":       head.UncleHash,
		"logsBloom":        head.Bloom,
		"stateRoot":        head.Root,
		"miner":            head.Coinbase,
		"difficulty":       u256ToHex(head.Difficulty),
		"extraData":        hexutil.Bytes(head.Extra),
		"gasLimit":         hexutil.Uint64(head.GasLimit),
		"gasUsed":          hexutil.Uint64(head.GasUsed),
		"timestamp":        hexutil.Uint64(head.Time),
		"transactionsRoot": head.TxHash,
		"receiptsRoot":     head.ReceiptHash,
	}
	if head.BaseFee != nil {
		result["baseFeePerGas"] = u256ToHex(head.BaseFee)
	}
	if head.WithdrawalsHash != nil {
		result["withdrawalsRoot"] = head.WithdrawalsHash
	}
	if head.BlobGasUsed != nil {
		result["blobGasUsed"] = hexutil.Uint64(*head.BlobGasUsed)
	}
	if head.ExcessBlobGas != nil {
		result["excessBlobGas"] = hexutil.Uint64(*head.ExcessBlobGas)
	}
	if head.ParentBeaconBlockRoot != nil {
		result["parentBeaconBlockRoot"] = head.ParentBeaconBlockRoot
	}
	return result
}

// RPCMarshalBlock converts the given block to the RPC output which depends on fullTx. If inclTx is true transactions are
// returned. When fullTx is true the returned block contains full transaction details, otherwise it will only contain
// transaction hashes. senders is only consulted for full transactions.
func RPCMarshalBlock(block *types.Block, inclTx bool, fullTx bool, senders []common.Address, additional map[string]interface{}) (map[string]interface{}, error) {
	fields := RPCMarshalHeader(block.HeaderNoCopy())
	size, err := block.Size()
	if err != nil {
		return nil, err
	}
	fields["size"] = hexutil.Uint64(size)

	if inclTx {
		txs := block.Transactions()
		transactions := make([]interface{}, len(txs))
		for i, txn := range txs {
			if !fullTx {
				transactions[i] = txn.Hash()
				continue
			}
			var sender common.Address
			if i < len(senders) {
				sender = senders[i]
			}
			transactions[i] = NewRPCTransaction(txn, sender, block.Hash(), block.NumberU64(), uint64(i))
		}
		fields["transactions"] = transactions
	}
	uncles := block.Uncles()
	uncleHashes := make([]common.Hash, len(uncles))
	for i, uncle := range uncles {
		uncleHashes[i] = uncle.Hash()
	}
	fields["uncles"] = uncleHashes

	for k, v := range additional {
		fields[k] = v
	}
	return fields, nil
}

// RPCTransaction represents a transaction that will serialize to the RPC representation of a transaction
type RPCTransaction struct {
	BlockHash            *common.Hash      `json:"blockHash"`
	BlockNumber          *hexutil.Big      `json:"blockNumber"`
	From                 common.Address    `json:"from"`
	Gas                  hexutil.Uint64    `json:"gas"`
	GasPrice             *hexutil.Big      `json:"gasPrice,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas,omitempty"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas,omitempty"`
	Hash                 common.Hash       `json:"hash"`
	Input                hexutil.Bytes     `json:"input"`
	Nonce                hexutil.Uint64    `json:"nonce"`
	To                   *common.Address   `json:"to"`
	TransactionIndex     *hexutil.Uint64   `json:"transactionIndex"`
	Value                *hexutil.Big      `json:"value"`
	Type                 hexutil.Uint64    `json:"type"`
	Accesses             *types.AccessList `json:"accessList,omitempty"`
	ChainID              *hexutil.Big      `json:"chainId,omitempty"`
	V                    *hexutil.Big      `json:"v"`
	R                    *hexutil.Big      `json:"r"`
	S                    *hexutil.Big      `json:"s"`
}

// NewRPCTransaction returns a transaction that will serialize to the RPC
// representation, with the given location metadata set (if available).
// Fee market transactions report their fee cap as gas price.
func NewRPCTransaction(txn types.Transaction, sender common.Address, blockHash common.Hash, blockNumber uint64, index uint64) *RPCTransaction {
	result := &RPCTransaction{
		Type:  hexutil.Uint64(txn.Type()),
		From:  sender,
		Gas:   hexutil.Uint64(txn.GetGasLimit()),
		Hash:  txn.Hash(),
		Input: hexutil.Bytes(txn.GetData()),
		Nonce: hexutil.Uint64(txn.GetNonce()),
		To:    txn.GetTo(),
		Value: u256ToHex(txn.GetValue()),
	}
	v, r, s := txn.RawSignatureValues()
	result.V, result.R, result.S = u256ToHex(v), u256ToHex(r), u256ToHex(s)
	switch t := txn.(type) {
	case *types.LegacyTx:
		if t.Protected() {
			result.ChainID = u256ToHex(t.GetChainID())
		}
		result.GasPrice = u256ToHex(t.GetPrice())
	case *types.AccessListTx:
		result.ChainID = u256ToHex(t.ChainID)
		result.GasPrice = u256ToHex(t.GetPrice())
		result.Accesses = &t.AccessList
	case *types.DynamicFeeTransaction:
		result.ChainID = u256ToHex(t.ChainID)
		result.MaxPriorityFeePerGas = u256ToHex(t.GetTipCap())
		result.MaxFeePerGas = u256ToHex(t.GetFeeCap())
		result.GasPrice = result.MaxFeePerGas
		result.Accesses = &t.AccessList
	}
	if blockHash != (common.Hash{}) {
		result.BlockHash = &blockHash
		result.BlockNumber = (*hexutil.Big)(new(big.Int).SetUint64(blockNumber))
		result.TransactionIndex = (*hexutil.Uint64)(&index)
	}
	return result
}

// RPCMarshalReceipt converts a reconstructed receipt to its eth_getTransactionReceipt form.
func RPCMarshalReceipt(receipt *types.Receipt) map[string]interface{} {
	fields := map[string]interface{}{
		"blockHash":         receipt.BlockHash,
		"blockNumber":       hexutil.Uint64(receipt.BlockNumber),
		"transactionHash":   receipt.TxHash,
		"transactionIndex":  hexutil.Uint64(receipt.TransactionIndex),
		"from":              receipt.From,
		"to":                receipt.To,
		"type":              hexutil.Uint(receipt.Type),
		"gasUsed":           hexutil.Uint64(receipt.GasUsed),
		"cumulativeGasUsed": hexutil.Uint64(receipt.CumulativeGasUsed),
		"contractAddress":   nil,
		"logs":              NewRPCLogs(receipt.Logs),
		"logsBloom":         receipt.Bloom,
		"status":            hexutil.Uint64(receipt.Status),
	}
	if receipt.EffectiveGasPrice != nil {
		fields["effectiveGasPrice"] = u256ToHex(receipt.EffectiveGasPrice)
	}
	// If the ContractAddress is 20 0x0 bytes, assume it is not a contract creation
	if receipt.ContractAddress != (common.Address{}) {
		fields["contractAddress"] = receipt.ContractAddress
	}
	return fields
}

// RPCLog is the JSON-RPC form of a log.
type RPCLog struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
	TxIndex     hexutil.Uint   `json:"transactionIndex"`
	BlockHash   common.Hash    `json:"blockHash"`
	Index       hexutil.Uint   `json:"logIndex"`
	Removed     bool           `json:"removed"`
}

// NewRPCLogs never returns nil so that an empty list serializes as [].
func NewRPCLogs(logs types.Logs) []*RPCLog {
	result := make([]*RPCLog, 0, len(logs))
	for _, l := range logs {
		topics := l.Topics
		if topics == nil {
			topics = []common.Hash{}
		}
		result = append(result, &RPCLog{
			Address:     l.Address,
			Topics:      topics,
			Data:        l.Data,
			BlockNumber: hexutil.Uint64(l.BlockNumber),
			TxHash:      l.TxHash,
			TxIndex:     hexutil.Uint(l.TxIndex),
			BlockHash:   l.BlockHash,
			Index:       hexutil.Uint(l.Index),
			Removed:     l.Removed,
		})
	}
	return result
}
