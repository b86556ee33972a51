// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"encoding/json"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/retry"
)

// DecodeExtraData unmarshals a resource's extra_data JSON into an
// untyped map and then decodes it into out via mapstructure, the
// teacher's approach for turning loosely-typed config data into a
// concrete Go struct before validation.
func DecodeExtraData(extraData json.RawMessage, out interface{}) error {
	var raw map[string]interface{}
	if len(extraData) > 0 {
		if err := json.Unmarshal(extraData, &raw); err != nil {
			return err
		}
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// DefaultRetryParams returns the engine-wide retryParams a kind uses
// for a phase it doesn't explicitly override (spec.md §4.1:
// "Defaults are provided by the engine and overridden per kind").
func DefaultRetryParams(phase addrs.Phase) RetryParams {
	p := retry.DefaultPolicy()
	switch phase {
	case addrs.PhaseEnsureExists, addrs.PhaseEnsureDeleted:
		p.MaxRetries = 10
		p.TotalTimeout = 0
	case addrs.PhaseEnsureHealthy:
		p.MaxRetries = 20
		p.TotalTimeout = 15 * time.Minute
	}
	return RetryParams{Policy: p, SoftTimeLimit: 120, TimeLimit: 180}
}
