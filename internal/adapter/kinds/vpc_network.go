// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

// Package kinds holds the concrete per-kind adapters named in spec.md
// §1's examples (networks, firewalls, instances, subnets).
package kinds

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/cloudapi"
)

// VPCNetworkSpec is the validated shape of a vpc_network resource's
// extra_data.
type VPCNetworkSpec struct {
	AutoCreateSubnetworks bool   `mapstructure:"auto_create_subnetworks"`
	RoutingMode           string `mapstructure:"routing_mode"`
}

// VPCNetwork adapts vpc_network resources to a cloudapi.Client.
type VPCNetwork struct {
	Client cloudapi.Client
}

func (a *VPCNetwork) Kind() addrs.Kind { return "vpc_network" }
func (a *VPCNetwork) IDField() string  { return "slug" }

func (a *VPCNetwork) GenerateID(json.RawMessage) string { return "" }

func (a *VPCNetwork) ExtractFromListResponse(resp cloudapi.Response) string {
	return fmt.Sprintf("%v", resp["id"])
}

func (a *VPCNetwork) ExtractFromCreateResponse(resp cloudapi.Response) string {
	return fmt.Sprintf("%v", resp["id"])
}

func (a *VPCNetwork) List(ctx context.Context) ([]cloudapi.Response, error) {
	return a.Client.List(ctx)
}

func (a *VPCNetwork) Create(ctx context.Context, slug addrs.Slug, extraData json.RawMessage) (bool, cloudapi.Response, error) {
	var spec VPCNetworkSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return false, nil, err
	}
	return a.Client.Create(ctx, cloudapi.Request{
		Name: string(slug),
		Fields: map[string]interface{}{
			"auto_create_subnetworks": spec.AutoCreateSubnetworks,
			"routing_mode":            spec.RoutingMode,
		},
	})
}

func (a *VPCNetwork) Delete(ctx context.Context, id string) (bool, cloudapi.Response, error) {
	return a.Client.Delete(ctx, id)
}

func (a *VPCNetwork) HealthChecks() []adapter.HealthCheck {
	return []adapter.HealthCheck{
		{
			Name: "network_ready",
			Run: func(_ context.Context, resp cloudapi.Response) (bool, bool, error) {
				return resp["id"] != nil, false, nil
			},
		},
	}
}

func (a *VPCNetwork) ExistsHook(_ context.Context, resp cloudapi.Response, extraData json.RawMessage) (json.RawMessage, error) {
	return mergeExtraData(extraData, map[string]interface{}{"provider_id": resp["id"]})
}

// defaultSubnetworkRegion/defaultSubnetworkCIDR are the values used
// for the synthesized default subnetwork HealthyHook declares; a real
// deployment would source these per-region, but one representative
// subnet is enough to exercise the derived-child-resource path.
const (
	defaultSubnetworkRegion = "us-central1"
	defaultSubnetworkCIDR   = "10.128.0.0/20"
)

// HealthyHook spawns the default subnetwork spec.md §4.1 calls out as
// an example of a derived child resource, but only when the network
// did not request auto-created subnetworks (those appear on their
// own, so we'd otherwise double-declare one).
func (a *VPCNetwork) HealthyHook(_ context.Context, slug addrs.Slug, extraData json.RawMessage) ([]adapter.ChildResource, error) {
	var spec VPCNetworkSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return nil, err
	}
	if spec.AutoCreateSubnetworks {
		return nil, nil
	}

	subnetExtraData, err := json.Marshal(map[string]interface{}{
		"network":       string(slug),
		"region":        defaultSubnetworkRegion,
		"ip_cidr_range": defaultSubnetworkCIDR,
	})
	if err != nil {
		return nil, err
	}
	return []adapter.ChildResource{{
		Kind:      "subnet",
		Slug:      addrs.Slug(fmt.Sprintf("%s-default", slug)),
		ExtraData: subnetExtraData,
	}}, nil
}

func (a *VPCNetwork) DeletedHook(context.Context, json.RawMessage) error { return nil }

func (a *VPCNetwork) Validate(extraData json.RawMessage) error {
	var spec VPCNetworkSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return err
	}
	switch spec.RoutingMode {
	case "", "REGIONAL", "GLOBAL":
		return nil
	default:
		return fmt.Errorf("vpc_network: routing_mode %q must be REGIONAL or GLOBAL", spec.RoutingMode)
	}
}

func (a *VPCNetwork) RetryParams(phase addrs.Phase) adapter.RetryParams {
	return adapter.DefaultRetryParams(phase)
}

func mergeExtraData(extraData json.RawMessage, extra map[string]interface{}) (json.RawMessage, error) {
	var raw map[string]interface{}
	if len(extraData) > 0 {
		if err := json.Unmarshal(extraData, &raw); err != nil {
			return nil, err
		}
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	for k, v := range extra {
		raw[k] = v
	}
	return json.Marshal(raw)
}
