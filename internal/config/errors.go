// Copyright (c) The Reconciler Authors
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/resourceforge/reconciler/internal/addrs"
)

// ValidationError is the terminal error class for ingestion failures
// (spec.md §7, "Validation"). It carries the structured HCL
// diagnostics so a CLI caller can print source-located messages, and
// a stable Reason an event log entry can key off of.
type ValidationError struct {
	Reason addrs.EventType
	Diags  hcl.Diagnostics
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Reason))
	for _, d := range e.Diags {
		b.WriteString(": ")
		b.WriteString(d.Error())
	}
	return b.String()
}
