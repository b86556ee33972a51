// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"encoding/json"

	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/zclconf/go-cty/cty"
)

// ExtraDataJSON converts a resource block's evaluated extra_data to
// the json.RawMessage shape the store persists, the same
// cty.Value-to-JSON path the teacher's provider plugin bridge
// (internal/plugin/grpc_provider.go) uses to cross the gRPC boundary.
func (r *ResourceBlock) ExtraDataJSON() (json.RawMessage, error) {
	if r.ExtraData == cty.NilVal || !r.ExtraData.IsWhollyKnown() {
		return json.RawMessage("{}"), nil
	}
	raw, err := ctyjson.Marshal(r.ExtraData, r.ExtraData.Type())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}
