// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
)

func parseString(t *testing.T, fs afero.Fs, path, src string) (*Document, error) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(src), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return NewParserWithFS(fs).Parse(path)
}

func TestParseMinimalDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc, err := parseString(t, fs, "main.hcl", `
provider {
  provider_type = "google"
  project_id    = "proj-1"
}

resource "vpc_network" "primary" {
  slug = "primary-net"
}
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Provider.Type != ProviderGoogle || doc.Provider.ProjectID != "proj-1" {
		t.Fatalf("unexpected provider: %+v", doc.Provider)
	}
	if len(doc.Resources) != 1 || doc.Resources[0].Addr() != "vpc_network.primary" {
		t.Fatalf("unexpected resources: %+v", doc.Resources)
	}
}

func TestParseMissingProviderBlockFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := parseString(t, fs, "main.hcl", `
resource "vpc_network" "primary" {
  slug = "primary-net"
}
`)
	if err == nil {
		t.Fatal("expected error for missing provider block")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
}

func TestParseInvalidSlugFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := parseString(t, fs, "main.hcl", `
provider {
  provider_type = "google"
  project_id    = "proj-1"
}

resource "vpc_network" "primary" {
  slug = "Not_A_Valid_Slug"
}
`)
	if err == nil {
		t.Fatal("expected error for invalid slug")
	}
}

func TestParseLocalsInterpolation(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc, err := parseString(t, fs, "main.hcl", `
provider {
  provider_type = "google"
  project_id    = "proj-1"
}

locals {
  env = "staging"
}

resource "vpc_network" "primary" {
  slug = "net-${local.env}"
}
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Resources[0].Slug != "net-staging" {
		t.Fatalf("expected interpolated slug, got %q", doc.Resources[0].Slug)
	}
}

func TestParseFileFunction(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "startup.sh", []byte("#!/bin/sh\necho hi\n"), 0o644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}
	doc, err := parseString(t, fs, "main.hcl", `
provider {
  provider_type = "google"
  project_id    = "proj-1"
}

resource "instance" "web" {
  slug = "web-1"
  extra_data = {
    startup_script = file("startup.sh")
  }
}
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	extraData, err := doc.Resources[0].ExtraDataJSON()
	if err != nil {
		t.Fatalf("ExtraDataJSON: %v", err)
	}
	if got := string(extraData); got == "" || got == "{}" {
		t.Fatalf("expected startup_script to be embedded, got %s", got)
	}
}

func TestParseCrossResourceReferenceDeferredThenResolved(t *testing.T) {
	fs := afero.NewMemMapFs()
	doc, err := parseString(t, fs, "main.hcl", `
provider {
  provider_type = "google"
  project_id    = "proj-1"
}

resource "vpc_network" "primary" {
  slug = "primary-net"
}

resource "subnet" "a" {
  slug = "subnet-a"
  extra_data = {
    network_id = vpc_network.primary.id
  }
}
`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	ordered := TopologicalOrder(doc.Resources)
	if len(ordered) != 2 || ordered[0].Addr() != "vpc_network.primary" {
		t.Fatalf("expected network before subnet, got %v", addrsOf(ordered))
	}

	resolved := map[string]cty.Value{}
	for _, rb := range ordered {
		if err := rb.ResolveReferences(resolved); err != nil {
			t.Fatalf("ResolveReferences(%s): %v", rb.Addr(), err)
		}
		resolved[rb.Addr()] = cty.ObjectVal(map[string]cty.Value{
			"id": cty.StringVal(rb.Addr() + "-id"),
		})
	}

	subnet := ordered[1]
	if subnet.Addr() != "subnet.a" {
		t.Fatalf("expected subnet.a second, got %s", subnet.Addr())
	}
	extraData, err := subnet.ExtraDataJSON()
	if err != nil {
		t.Fatalf("ExtraDataJSON: %v", err)
	}
	if got := string(extraData); got == "{}" {
		t.Fatalf("expected resolved network_id in extra_data, got %s", got)
	}
}

func addrsOf(rs []*ResourceBlock) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.Addr())
	}
	return out
}

func TestDetectCyclesFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := parseString(t, fs, "main.hcl", `
provider {
  provider_type = "google"
  project_id    = "proj-1"
}

resource "subnet" "a" {
  slug = "subnet-a"
  extra_data = {
    peer_id = subnet.b.id
  }
}

resource "subnet" "b" {
  slug = "subnet-b"
  extra_data = {
    peer_id = subnet.a.id
  }
}
`)
	if err == nil {
		t.Fatal("expected cycle_found error")
	}
}
