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

// SubnetSpec is the validated shape of a subnet resource's extra_data.
// Network is a `${vpc_network.name.slug}`-style cross-reference,
// resolved by internal/config before this adapter ever sees it.
type SubnetSpec struct {
	Network     string `mapstructure:"network"`
	Region      string `mapstructure:"region"`
	IPCidrRange string `mapstructure:"ip_cidr_range"`
}

// Subnet adapts subnet resources to a cloudapi.Client.
type Subnet struct {
	Client cloudapi.Client
}

func (a *Subnet) Kind() addrs.Kind { return "subnet" }
func (a *Subnet) IDField() string  { return "slug" }

func (a *Subnet) GenerateID(json.RawMessage) string { return "" }

func (a *Subnet) ExtractFromListResponse(resp cloudapi.Response) string {
	return fmt.Sprintf("%v", resp["id"])
}

func (a *Subnet) ExtractFromCreateResponse(resp cloudapi.Response) string {
	return fmt.Sprintf("%v", resp["id"])
}

func (a *Subnet) List(ctx context.Context) ([]cloudapi.Response, error) {
	return a.Client.List(ctx)
}

func (a *Subnet) Create(ctx context.Context, slug addrs.Slug, extraData json.RawMessage) (bool, cloudapi.Response, error) {
	var spec SubnetSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return false, nil, err
	}
	return a.Client.Create(ctx, cloudapi.Request{
		Name: string(slug),
		Fields: map[string]interface{}{
			"network":       spec.Network,
			"region":        spec.Region,
			"ip_cidr_range": spec.IPCidrRange,
		},
	})
}

func (a *Subnet) Delete(ctx context.Context, id string) (bool, cloudapi.Response, error) {
	return a.Client.Delete(ctx, id)
}

func (a *Subnet) HealthChecks() []adapter.HealthCheck {
	return []adapter.HealthCheck{
		{
			Name: "subnet_ready",
			Run: func(_ context.Context, resp cloudapi.Response) (bool, bool, error) {
				return resp["id"] != nil, false, nil
			},
		},
	}
}

func (a *Subnet) ExistsHook(_ context.Context, resp cloudapi.Response, extraData json.RawMessage) (json.RawMessage, error) {
	return mergeExtraData(extraData, map[string]interface{}{"provider_id": resp["id"]})
}

func (a *Subnet) HealthyHook(context.Context, addrs.Slug, json.RawMessage) ([]adapter.ChildResource, error) {
	return nil, nil
}

func (a *Subnet) DeletedHook(context.Context, json.RawMessage) error { return nil }

func (a *Subnet) Validate(extraData json.RawMessage) error {
	var spec SubnetSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return err
	}
	if spec.Network == "" {
		return fmt.Errorf("subnet: network is required")
	}
	if spec.IPCidrRange == "" {
		return fmt.Errorf("subnet: ip_cidr_range is required")
	}
	return nil
}

func (a *Subnet) RetryParams(phase addrs.Phase) adapter.RetryParams {
	return adapter.DefaultRetryParams(phase)
}
