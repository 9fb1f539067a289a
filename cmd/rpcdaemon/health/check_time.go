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

package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/erigontech/erigon-middleware/rpc"
)

var errTimestampTooOld = errors.New("timestamp too old")

// checkTime fails when the latest block is older than maxSecondsBehind.
func checkTime(ctx context.Context, maxSecondsBehind int, api EthAPI, now time.Time) error {
	if api == nil {
		return fmt.Errorf("no connection to the database or `eth` namespace isn't enabled")
	}
	data, err := api.GetBlockByNumber(ctx, rpc.LatestBlockNumber, false)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("latest block not found")
	}
	timestamp, ok := data["timestamp"].(hexutil.Uint64)
	if !ok {
		return fmt.Errorf("unexpected response type for timestamp: %T", data["timestamp"])
	}
	behind := now.Unix() - int64(timestamp)
	if behind > int64(maxSecondsBehind) {
		return fmt.Errorf("%w: latest block is %d seconds behind, max %d", errTimestampTooOld, behind, maxSecondsBehind)
	}
	return nil
}
