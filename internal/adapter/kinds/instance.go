// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package kinds

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/cloudapi"
)

// InstanceSpec is the validated shape of an instance resource's
// extra_data.
type InstanceSpec struct {
	MachineType string `mapstructure:"machine_type"`
	Zone        string `mapstructure:"zone"`
	Subnet      string `mapstructure:"subnet"`
	Image       string `mapstructure:"image"`
}

// Instance adapts instance resources to a cloudapi.Client. Unlike the
// other kinds, it overrides ensure_healthy's retry budget: instances take longer to boot, so spec.md §4.1's "overridden
// per kind" escape hatch is exercised here concretely.
type Instance struct {
	Client cloudapi.Client
}

func (a *Instance) Kind() addrs.Kind { return "instance" }
func (a *Instance) IDField() string  { return "slug" }

func (a *Instance) GenerateID(json.RawMessage) string { return "" }

func (a *Instance) ExtractFromListResponse(resp cloudapi.Response) string {
	return fmt.Sprintf("%v", resp["id"])
}

func (a *Instance) ExtractFromCreateResponse(resp cloudapi.Response) string {
	return fmt.Sprintf("%v", resp["id"])
}

func (a *Instance) List(ctx context.Context) ([]cloudapi.Response, error) {
	return a.Client.List(ctx)
}

func (a *Instance) Create(ctx context.Context, slug addrs.Slug, extraData json.RawMessage) (bool, cloudapi.Response, error) {
	var spec InstanceSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return false, nil, err
	}
	return a.Client.Create(ctx, cloudapi.Request{
		Name: string(slug),
		Fields: map[string]interface{}{
			"machine_type": spec.MachineType,
			"zone":         spec.Zone,
			"subnet":       spec.Subnet,
			"image":        spec.Image,
		},
	})
}

func (a *Instance) Delete(ctx context.Context, id string) (bool, cloudapi.Response, error) {
	return a.Client.Delete(ctx, id)
}

// HealthChecks requires both a RUNNING status and a reachable guest
// agent ping; a STOPPED/TERMINATED status is terminal (spec.md §4.1:
// "terminal=true means fail fast, do not retry").
func (a *Instance) HealthChecks() []adapter.HealthCheck {
	return []adapter.HealthCheck{
		{
			Name: "status_running",
			Run: func(_ context.Context, resp cloudapi.Response) (bool, bool, error) {
				status, _ := resp["status"].(string)
				switch status {
				case "RUNNING":
					return true, false, nil
				case "TERMINATED", "STOPPED":
					return false, true, nil
				default:
					return false, false, nil
				}
			},
		},
		{
			Name: "guest_agent_reachable",
			Run: func(_ context.Context, resp cloudapi.Response) (bool, bool, error) {
				return resp["guest_agent"] == true, false, nil
			},
		},
	}
}

func (a *Instance) ExistsHook(_ context.Context, resp cloudapi.Response, extraData json.RawMessage) (json.RawMessage, error) {
	return mergeExtraData(extraData, map[string]interface{}{"provider_id": resp["id"]})
}

func (a *Instance) HealthyHook(context.Context, addrs.Slug, json.RawMessage) ([]adapter.ChildResource, error) {
	return nil, nil
}

func (a *Instance) DeletedHook(context.Context, json.RawMessage) error { return nil }

func (a *Instance) Validate(extraData json.RawMessage) error {
	var spec InstanceSpec
	if err := adapter.DecodeExtraData(extraData, &spec); err != nil {
		return err
	}
	if spec.MachineType == "" {
		return fmt.Errorf("instance: machine_type is required")
	}
	if spec.Zone == "" {
		return fmt.Errorf("instance: zone is required")
	}
	return nil
}

func (a *Instance) RetryParams(phase addrs.Phase) adapter.RetryParams {
	p := adapter.DefaultRetryParams(phase)
	if phase == addrs.PhaseEnsureHealthy {
		p.Policy.MaxRetries = 40
		p.Policy.TotalTimeout = 20 * time.Minute
	}
	return p
}
