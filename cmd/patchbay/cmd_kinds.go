// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Patchbay/pkg/ux"
	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
)

// runKinds prints the kind catalog. The registry is self-contained, so
// this does not boot the audio engine or open any storage.
func runKinds(cmd *cobra.Command, args []string) {
	reg := registry.New()
	defs := reg.Kinds()

	rows := make([][]string, 0, len(defs))
	for _, def := range defs {
		rows = append(rows, []string{
			string(def.Kind),
			def.Label,
			kindClass(def),
			portNames(def.Inputs),
			portNames(def.Outputs),
			paramNames(def.Params),
		})
	}

	ux.Title("Node Kinds")
	fmt.Println(ux.Table(
		[]string{"KIND", "LABEL", "CLASS", "INPUTS", "OUTPUTS", "PARAMS"},
		rows,
	))
	ux.Muted(fmt.Sprintf("%d kinds registered", len(defs)))
}

func kindClass(def registry.Definition) string {
	if !def.Native {
		return "logic"
	}
	tags := []string{"native"}
	if def.Async {
		tags = append(tags, "async")
	}
	if def.OneShot {
		tags = append(tags, "one-shot")
	}
	return strings.Join(tags, " ")
}

func portNames(ports []registry.Port) string {
	if len(ports) == 0 {
		return "-"
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

func paramNames(params []registry.ParamSpec) string {
	if len(params) == 0 {
		return "-"
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("patchbay %s\n", patchbay.Version)
}
