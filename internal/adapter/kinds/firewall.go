// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package kinds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/cloudapi"
)

// FirewallSpec is the validated shape of a firewall resource's extra_data.
type FirewallSpec struct {
	Network      string   `mapstructure:"network"`
	Direction    string   `mapstructure:"direction"`
	Allowed      []string `mapstructure:"allowed"`
	SourceRanges []string `mapstructure:"source_ranges"`
}

// Firewall adapts firewall resources to a cloudapi.Client.
type Firewall struct {
	Client cloudapi.Client
}

func (a *Firewall) Kind() addrs.Kind { return "firewall" }
func (a *Firewall) IDField() string  { return "slug" }

func (a *Firewall) GenerateID(json.RawMessage) string { return "" }

func (a *Firewall) ExtractFromListResponse(resp cloudapi.Response) string {
	return fmt.Sprintf("%v", resp["id"])
}

func (a *Firewall) ExtractFromCreateResponse(resp cloudapi.Response) string {
	return fmt.Sprintf("%v", resp["id"])
}

func (a *Firewall) List(ctx context.Context) ([]cloudapi.Response, error) {
	return a.Client.List(ctx)
}

func (a *Firewall) Create(ctx context.Context, slug addrs.Slug, extraData json.RawMessage) (bool, cloudapi.Response, error) {
	var spec FirewallSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return false, nil, err
	}
	return a.Client.Create(ctx, cloudapi.Request{
		Name: string(slug),
		Fields: map[string]interface{}{
			"network":       spec.Network,
			"direction":     spec.Direction,
			"allowed":       spec.Allowed,
			"source_ranges": spec.SourceRanges,
		},
	})
}

func (a *Firewall) Delete(ctx context.Context, id string) (bool, cloudapi.Response, error) {
	return a.Client.Delete(ctx, id)
}

func (a *Firewall) HealthChecks() []adapter.HealthCheck {
	return []adapter.HealthCheck{
		{
			Name: "firewall_applied",
			Run: func(_ context.Context, resp cloudapi.Response) (bool, bool, error) {
				return resp["id"] != nil, false, nil
			},
		},
	}
}

func (a *Firewall) ExistsHook(_ context.Context, resp cloudapi.Response, extraData json.RawMessage) (json.RawMessage, error) {
	return mergeExtraData(extraData, map[string]interface{}{"provider_id": resp["id"]})
}

func (a *Firewall) HealthyHook(context.Context, addrs.Slug, json.RawMessage) ([]adapter.ChildResource, error) {
	return nil, nil
}

func (a *Firewall) DeletedHook(context.Context, json.RawMessage) error { return nil }

func (a *Firewall) Validate(extraData json.RawMessage) error {
	var spec FirewallSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return err
	}
	switch spec.Direction {
	case "INGRESS", "EGRESS":
	default:
		return fmt.Errorf("firewall: direction must be INGRESS or EGRESS, got %q", spec.Direction)
	}
	if len(spec.Allowed) == 0 {
		return fmt.Errorf("firewall: allowed must name at least one protocol")
	}
	return nil
}

func (a *Firewall) RetryParams(phase addrs.Phase) adapter.RetryParams {
	return adapter.DefaultRetryParams(phase)
}
