// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package kinds

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/resourceforge/reconciler/internal/addrs"
	"github.com/resourceforge/reconciler/internal/adapter"
	"github.com/resourceforge/reconciler/internal/cloudapi"
)

func TestVPCNetworkCreateAndValidate(t *testing.T) {
	client := cloudapi.NewFake()
	a := &VPCNetwork{Client: client}

	if err := a.Validate(json.RawMessage(`{"routing_mode":"GLOBAL"}`)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := a.Validate(json.RawMessage(`{"routing_mode":"BOGUS"}`)); err == nil {
		t.Fatal("expected validation error for bogus routing_mode")
	}

	ok, resp, err := a.Create(context.Background(), addrs.Slug("main"), json.RawMessage(`{"auto_create_subnetworks":true}`))
	if err != nil || !ok {
		t.Fatalf("Create: ok=%v err=%v", ok, err)
	}
	if resp["name"] != "main" {
		t.Fatalf("resp[name] = %v, want main", resp["name"])
	}
}

func TestVPCNetworkHealthyHookSpawnsDefaultSubnetWhenNotAutoCreated(t *testing.T) {
	a := &VPCNetwork{Client: cloudapi.NewFake()}

	children, err := a.HealthyHook(context.Background(), addrs.Slug("net-a"), json.RawMessage(`{"auto_create_subnetworks":false}`))
	if err != nil {
		t.Fatalf("HealthyHook: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("len(children) = %d, want 1", len(children))
	}
	child := children[0]
	if child.Kind != "subnet" {
		t.Fatalf("child.Kind = %q, want subnet", child.Kind)
	}
	var spec SubnetSpec
	if err := adapter.DecodeExtraData(child.ExtraData, &spec); err != nil {
		t.Fatalf("decode child extra_data: %v", err)
	}
	if spec.Network != "net-a" {
		t.Fatalf("spec.Network = %q, want net-a", spec.Network)
	}
}

func TestVPCNetworkHealthyHookSkipsSubnetWhenAutoCreated(t *testing.T) {
	a := &VPCNetwork{Client: cloudapi.NewFake()}

	children, err := a.HealthyHook(context.Background(), addrs.Slug("net-a"), json.RawMessage(`{"auto_create_subnetworks":true}`))
	if err != nil {
		t.Fatalf("HealthyHook: %v", err)
	}
	if children != nil {
		t.Fatalf("expected no children, got %v", children)
	}
}

func TestFirewallValidateRejectsBadDirection(t *testing.T) {
	a := &Firewall{Client: cloudapi.NewFake()}
	err := a.Validate(json.RawMessage(`{"direction":"SIDEWAYS","allowed":["tcp:22"]}`))
	if err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestInstanceHealthChecksTerminalOnStopped(t *testing.T) {
	a := &Instance{Client: cloudapi.NewFake()}
	checks := a.HealthChecks()
	passed, terminal, err := checks[0].Run(context.Background(), cloudapi.Response{"status": "TERMINATED"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if passed || !terminal {
		t.Fatalf("passed=%v terminal=%v, want false true", passed, terminal)
	}
}

func TestSubnetValidateRequiresNetwork(t *testing.T) {
	a := &Subnet{Client: cloudapi.NewFake()}
	if err := a.Validate(json.RawMessage(`{"ip_cidr_range":"10.0.0.0/24"}`)); err == nil {
		t.Fatal("expected error when network is missing")
	}
}
