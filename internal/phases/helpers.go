// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package phases

import (
	"context"
	"encoding/json"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/cloudapi"
	"github.com/resourceforge/reconciler/internal/projector"
	"github.com/resourceforge/reconciler/internal/runner"
)

// emitResourceEvent is a thin convenience wrapper so phase bodies
// don't have to thread a *projector.Projector through PhaseContext
// just to append one event; it constructs the Projector from pc.Store
// on the fly since event appends and their projector side effects are
// always transactionally adjacent here.
func emitResourceEvent(ctx context.Context, pc *runner.PhaseContext, eventType addrs.EventType, reason addrs.Reason, info json.RawMessage) (addrs.State, error) {
	p := projector.New(pc.Store)
	return p.EmitResourceEvent(ctx, projector.ResourceEventInput{
		ResourceID:   pc.Resource.ID,
		TransitionID: pc.Transition.ID,
		Phase:        pc.Transition.Phase,
		Type:         eventType,
		Reason:       reason,
		ExtraInfo:    info,
	})
}

// findByID returns the entry in list whose extractID(entry) == id, or
// false if none match.
func findByID(list []cloudapi.Response, extractID func(cloudapi.Response) string, id string) (cloudapi.Response, bool) {
	for _, entry := range list {
		if extractID(entry) == id {
			return entry, true
		}
	}
	return nil, false
}
