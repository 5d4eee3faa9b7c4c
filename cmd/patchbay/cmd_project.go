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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/Patchbay/cmd/patchbay/config"
	"github.com/AleutianAI/Patchbay/pkg/ux"
	"github.com/AleutianAI/Patchbay/services/patchbay/project"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

// openProjects opens the on-disk project store the serve command uses.
// The store takes an exclusive lock, so project commands cannot run while
// a server is up on the same directory.
func openProjects(cfg config.PatchbayConfig) (*project.Store, error) {
	if cfg.Storage.ProjectDir == "" {
		return nil, fmt.Errorf("no project directory configured; set storage.project_dir in the config")
	}
	pcfg := project.DefaultConfig(cfg.Storage.ProjectDir)
	pcfg.Logger = newCommandLogger(cfg)
	return project.Open(pcfg)
}

// findProject resolves a cli argument to a stored project, matching the
// record ID first and the name (case-insensitively) second.
func findProject(ctx context.Context, store *project.Store, arg string) (project.Info, error) {
	infos, err := store.ListAll(ctx)
	if err != nil {
		return project.Info{}, err
	}
	for _, info := range infos {
		if info.ID == arg {
			return info, nil
		}
	}
	want := strings.ToLower(strings.TrimSpace(arg))
	for _, info := range infos {
		if strings.ToLower(strings.TrimSpace(info.Name)) == want {
			return info, nil
		}
	}
	return project.Info{}, fmt.Errorf("no project named %q", arg)
}

func runProjectList(cmd *cobra.Command, args []string) {
	store, err := openProjects(config.Global)
	if err != nil {
		ux.Errorf("Failed to open the project store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	infos, err := store.ListAll(context.Background())
	if err != nil {
		ux.Errorf("Failed to list projects: %v", err)
		os.Exit(1)
	}
	if len(infos) == 0 {
		ux.Muted("No saved projects yet. Save one from the editor or import a snapshot.")
		return
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.ID,
			info.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	ux.Title("Saved Projects")
	fmt.Println(ux.Table([]string{"NAME", "ID", "UPDATED"}, rows))
}

func runProjectExport(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		ux.Error("Usage: patchbay project export [project-name] [file]")
		os.Exit(1)
	}

	store, err := openProjects(config.Global)
	if err != nil {
		ux.Errorf("Failed to open the project store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	info, err := findProject(ctx, store, args[0])
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}
	rec, err := store.Load(ctx, info.ID)
	if err != nil {
		ux.Errorf("Failed to load %q: %v", info.Name, err)
		os.Exit(1)
	}

	outPath := slugify(rec.Name) + ".patchbay.json"
	if len(args) > 1 {
		outPath = args[1]
	}
	if err := os.WriteFile(outPath, rec.Snapshot, 0644); err != nil {
		ux.Errorf("Failed to write %s: %v", outPath, err)
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Exported %q to %s", rec.Name, outPath))
}

func runProjectImport(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		ux.Error("Usage: patchbay project import [file]")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		ux.Errorf("Failed to read %s: %v", args[0], err)
		os.Exit(1)
	}
	// Parse before touching the store so a bad file never half-imports.
	graph, err := snapshot.Decode(data)
	if err != nil {
		ux.Errorf("%s is not a valid snapshot: %v", args[0], err)
		os.Exit(1)
	}

	name := importName
	if name == "" {
		base := filepath.Base(args[0])
		base = strings.TrimSuffix(base, ".json")
		base = strings.TrimSuffix(base, ".patchbay")
		name = base
	}

	store, err := openProjects(config.Global)
	if err != nil {
		ux.Errorf("Failed to open the project store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	id, err := store.Save(context.Background(), name, data)
	if err != nil {
		ux.Errorf("Failed to save %q: %v", name, err)
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Imported %q (%d nodes, %d edges)", name, len(graph.Nodes), len(graph.Edges)))
	ux.KeyValue("id", id)
}

func runProjectDelete(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		ux.Error("Usage: patchbay project delete [project-name]")
		os.Exit(1)
	}

	store, err := openProjects(config.Global)
	if err != nil {
		ux.Errorf("Failed to open the project store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	info, err := findProject(ctx, store, args[0])
	if err != nil {
		ux.Errorf("%v", err)
		os.Exit(1)
	}

	if !forceDelete {
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete project %q?", info.Name)).
				Description("The saved snapshot is removed permanently.").
				Affirmative("Delete").
				Negative("Keep").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			ux.Errorf("Confirmation failed: %v", err)
			os.Exit(1)
		}
		if !confirmed {
			ux.Muted("Kept " + info.Name)
			return
		}
	}

	if err := store.Delete(ctx, info.ID); err != nil {
		ux.Errorf("Failed to delete %q: %v", info.Name, err)
		os.Exit(1)
	}
	ux.Success(fmt.Sprintf("Deleted %q", info.Name))
}

// slugify turns a project name into a safe file name stem.
func slugify(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}
