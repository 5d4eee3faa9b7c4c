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
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Patchbay/cmd/patchbay/config"
	"github.com/AleutianAI/Patchbay/pkg/ux"
)

// --- Global Command Variables ---
var (
	logLevel string // CLI override for logging.level
	logJSON  bool   // CLI override for logging.json

	serveHost string
	servePort int

	renderPreset  string
	renderOutput  string
	renderSeconds float64

	importName  string
	forceDelete bool

	rootCmd = &cobra.Command{
		Use:   "patchbay",
		Short: "A cli to run and script the Patchbay audio graph engine",
		Long: `Patchbay is a node-based audio synthesis workspace. This cli serves
				the HTTP/WebSocket editor API, edits graphs from a terminal shell,
				renders patches to WAV files offline, and manages saved projects.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				ux.Errorf("Failed to load the config: %v", err)
				os.Exit(1)
			}
		},
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the Patchbay HTTP and WebSocket API server",
		Run:   runServe, // Defined in cmd_serve.go
	}

	// --- Editing ---
	editCmd = &cobra.Command{
		Use:   "edit",
		Short: "Open an interactive graph editing shell",
		Run:   runEdit, // Defined in cmd_edit.go
	}

	renderCmd = &cobra.Command{
		Use:   "render [project-name]",
		Short: "Render a saved project or a preset to a WAV file offline",
		Run:   runRender, // Defined in cmd_render.go
	}

	// --- Projects ---
	projectCmd = &cobra.Command{
		Use:   "project",
		Short: "Manage saved projects",
	}
	projectListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all saved projects",
		Run:   runProjectList, // Defined in cmd_project.go
	}
	projectExportCmd = &cobra.Command{
		Use:   "export [project-name] [file]",
		Short: "Export a project's graph snapshot to a JSON file",
		Run:   runProjectExport, // Defined in cmd_project.go
	}
	projectImportCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Import a snapshot JSON file as a new project",
		Run:   runProjectImport, // Defined in cmd_project.go
	}
	projectDeleteCmd = &cobra.Command{
		Use:   "delete [project-name]",
		Short: "Delete a saved project",
		Run:   runProjectDelete, // Defined in cmd_project.go
	}

	// --- Utilities ---
	kindsCmd = &cobra.Command{
		Use:   "kinds",
		Short: "List the node kinds the engine understands",
		Run:   runKinds, // Defined in cmd_kinds.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the Patchbay version",
		Run:   runVersion, // Defined in cmd_kinds.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override the configured log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Write JSON logs to stderr instead of text")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override the configured listen host")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override the configured listen port")

	rootCmd.AddCommand(editCmd)

	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&renderPreset, "preset", "", "Render a built-in preset instead of a saved project")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "patch.wav", "Output WAV file path")
	renderCmd.Flags().Float64Var(&renderSeconds, "seconds", 5.0, "Length of audio to render in seconds")

	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectExportCmd)
	projectCmd.AddCommand(projectImportCmd)
	projectImportCmd.Flags().StringVar(&importName, "name", "", "Name for the imported project (defaults to the file name)")
	projectCmd.AddCommand(projectDeleteCmd)
	projectDeleteCmd.Flags().BoolVar(&forceDelete, "force", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(kindsCmd)
	rootCmd.AddCommand(versionCmd)
}
