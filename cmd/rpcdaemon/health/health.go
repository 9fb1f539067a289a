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
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/erigon-middleware/rpc"
)

const (
	urlPath          = "/health"
	healthHeader     = "X-ERIGON-HEALTHCHECK"
	checkBlock       = "check_block"
	maxSecondsBehind = "max_seconds_behind"
)

// ProcessHealthcheckIfNeeded answers GET /health. Checks come from the X-ERIGON-HEALTHCHECK
// headers, e.g. "check_block=100" or "max_seconds_behind=600"; without any header only the
// database is probed through eth_blockNumber.
func ProcessHealthcheckIfNeeded(w http.ResponseWriter, r *http.Request, api EthAPI) bool {
	if !strings.EqualFold(r.URL.Path, urlPath) {
		return false
	}

	errs := map[string]error{}
	headers := r.Header.Values(healthHeader)
	if len(headers) == 0 {
		if api == nil {
			errs["db"] = fmt.Errorf("`eth` namespace isn't enabled")
		} else if _, err := api.BlockNumber(r.Context()); err != nil {
			errs["db"] = err
		} else {
			errs["db"] = nil
		}
	}
	for _, header := range headers {
		name, value, _ := strings.Cut(header, "=")
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			errs[name] = fmt.Errorf("invalid value %q: %w", value, err)
			continue
		}
		switch strings.TrimSpace(name) {
		case checkBlock:
			errs[checkBlock] = checkBlockNumber(r.Context(), rpc.BlockNumber(n), api)
		case maxSecondsBehind:
			errs[maxSecondsBehind] = checkTime(r.Context(), n, api, time.Now())
		default:
			errs[name] = fmt.Errorf("unknown healthcheck")
		}
	}

	reportHealth(errs, w)
	return true
}

func reportHealth(errs map[string]error, w http.ResponseWriter) {
	statusCode := http.StatusOK
	report := make(map[string]string, len(errs))
	for name, err := range errs {
		if err != nil {
			statusCode = http.StatusInternalServerError
			report[name] = "ERROR: " + err.Error()
			continue
		}
		report[name] = "HEALTHY"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		log.Root().Warn("unable to write healthcheck response", "err", err)
	}
}
