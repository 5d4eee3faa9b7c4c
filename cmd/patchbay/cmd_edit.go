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
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/Patchbay/cmd/patchbay/config"
	"github.com/AleutianAI/Patchbay/pkg/logging"
	"github.com/AleutianAI/Patchbay/pkg/ux"
	"github.com/AleutianAI/Patchbay/pkg/validation"
	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/graph"
	"github.com/AleutianAI/Patchbay/services/patchbay/registry"
	"github.com/AleutianAI/Patchbay/services/patchbay/snapshot"
)

const editHelp = `  add <kind> [id]                  create a node
  remove <id>                      delete a node and its edges
  connect <src> <dst> [out] [in]   wire two nodes together
  disconnect <edge-id>             remove an edge
  set <id> <param> <value>         change a node property
  move <id> <x> <y>                reposition a node
  trigger <id>                     restart a one-shot node
  value <id>                       read a display node's value
  state                            show nodes and edges
  play | pause                     control the transport
  undo | redo                      step through edit history
  save <name>                      save the graph as a project
  open <name>                      load a saved project
  projects                         list saved projects
  preset <name>                    load a preset
  presets                          list available presets
  export <file>                    write the snapshot to a JSON file
  render <file> [seconds]          render the graph to a WAV file
  clear                            remove every node and edge
  quit                             leave the shell`

func runEdit(cmd *cobra.Command, args []string) {
	cfg := config.Global

	// Store activity would interleave with the prompt on stderr, so the
	// shell logs to the file only.
	level := cfg.Logging.GetLevel()
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(level),
		LogDir:  cfg.Logging.Dir,
		Service: "patchbay",
		Quiet:   true,
	})
	defer logger.Close()

	svc, err := patchbay.New(patchbay.Config{
		SampleRate:   cfg.Audio.GetSampleRate(),
		HistoryLimit: cfg.Audio.GetHistoryLimit(),
		ProjectDir:   cfg.Storage.ProjectDir,
		PresetDir:    cfg.Storage.PresetDir,
		Log:          logger,
	})
	if err != nil {
		ux.Errorf("Failed to assemble the service: %v", err)
		os.Exit(1)
	}
	defer svc.Close()

	interactive := false
	reader := newLineReader()
	if _, ok := reader.(*interactiveReader); ok {
		interactive = true
		ux.Title("Patchbay Editor")
		ux.Muted("type 'help' for commands, 'quit' or Ctrl+D to leave")
	}

	session := &editSession{svc: svc, out: os.Stdout}
	for {
		line, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			ux.Errorf("Input failed: %v", err)
			break
		}
		if line == "" {
			continue
		}
		if session.dispatch(line) {
			break
		}
	}
	if interactive {
		ux.Muted("bye")
	}
}

// editSession binds the shell's command dispatch to one service instance.
// Output goes through the writer so tests can capture it.
type editSession struct {
	svc *patchbay.Service
	out io.Writer
}

func (s *editSession) ok(format string, args ...any) {
	fmt.Fprintf(s.out, "%s %s\n", ux.IconSuccess.Render(), fmt.Sprintf(format, args...))
}

func (s *editSession) fail(err error) {
	fmt.Fprintf(s.out, "%s %v\n", ux.IconError.Render(), err)
}

func (s *editSession) say(format string, args ...any) {
	fmt.Fprintf(s.out, "%s\n", fmt.Sprintf(format, args...))
}

// dispatch runs one command line and reports whether the shell should
// exit. Unknown commands and bad arguments never end the session.
func (s *editSession) dispatch(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	verb, rest := fields[0], fields[1:]

	switch verb {
	case "quit", "exit":
		return true

	case "help":
		s.say("%s", editHelp)

	case "add":
		if len(rest) < 1 {
			s.say("usage: add <kind> [id]")
			return false
		}
		spec := graph.NodeSpec{Kind: registry.Kind(rest[0])}
		if len(rest) > 1 {
			if err := validation.ValidateID(rest[1]); err != nil {
				s.fail(err)
				return false
			}
			spec.ID = rest[1]
		}
		view, err := s.svc.Store.AddNode(spec)
		if err != nil {
			s.fail(err)
			return false
		}
		s.ok("added %s %s (%s)", view.Kind, view.ID, view.Status)

	case "remove":
		if len(rest) != 1 {
			s.say("usage: remove <id>")
			return false
		}
		if err := s.svc.Store.RemoveNode(rest[0]); err != nil {
			s.fail(err)
			return false
		}
		s.ok("removed %s", rest[0])

	case "connect":
		if len(rest) < 2 {
			s.say("usage: connect <source> <target> [output] [input]")
			return false
		}
		spec := graph.EdgeSpec{SourceNodeID: rest[0], TargetNodeID: rest[1]}
		if len(rest) > 2 {
			spec.SourceOutput = rest[2]
		}
		if len(rest) > 3 {
			spec.TargetInput = rest[3]
		}
		view, err := s.svc.Store.AddEdge(spec)
		if err != nil {
			s.fail(err)
			return false
		}
		s.ok("connected %s %s %s (%s edge %s)",
			view.SourceNodeID, ux.IconArrow.Render(), view.TargetNodeID, view.Class, view.ID)

	case "disconnect":
		if len(rest) != 1 {
			s.say("usage: disconnect <edge-id>")
			return false
		}
		if err := s.svc.Store.RemoveEdge(rest[0]); err != nil {
			s.fail(err)
			return false
		}
		s.ok("disconnected %s", rest[0])

	case "set":
		if len(rest) != 3 {
			s.say("usage: set <id> <param> <value>")
			return false
		}
		if err := s.svc.Store.UpdateNodeProperty(rest[0], rest[1], parseValue(rest[2])); err != nil {
			s.fail(err)
			return false
		}
		view, err := s.svc.Store.Node(rest[0])
		if err != nil {
			s.fail(err)
			return false
		}
		s.ok("%s.%s = %v", rest[0], rest[1], view.Properties[rest[1]])

	case "move":
		if len(rest) != 3 {
			s.say("usage: move <id> <x> <y>")
			return false
		}
		x, errX := strconv.ParseFloat(rest[1], 64)
		y, errY := strconv.ParseFloat(rest[2], 64)
		if errX != nil || errY != nil {
			s.say("usage: move <id> <x> <y>")
			return false
		}
		if err := s.svc.Store.MoveNode(rest[0], snapshot.Position{X: x, Y: y}); err != nil {
			s.fail(err)
			return false
		}
		s.ok("moved %s to (%g, %g)", rest[0], x, y)

	case "trigger":
		if len(rest) != 1 {
			s.say("usage: trigger <id>")
			return false
		}
		if err := s.svc.Store.TriggerNode(rest[0]); err != nil {
			s.fail(err)
			return false
		}
		s.ok("triggered %s", rest[0])

	case "value":
		if len(rest) != 1 {
			s.say("usage: value <id>")
			return false
		}
		v, err := s.svc.Store.DisplayValue(rest[0])
		if err != nil {
			s.fail(err)
			return false
		}
		s.say("%s = %.4f", rest[0], v)

	case "state":
		s.printState()

	case "play":
		if err := s.svc.Store.Play(); err != nil {
			s.fail(err)
			return false
		}
		s.ok("playing")

	case "pause":
		if err := s.svc.Store.Pause(); err != nil {
			s.fail(err)
			return false
		}
		s.ok("paused")

	case "undo":
		if err := s.svc.Store.Undo(); err != nil {
			s.fail(err)
			return false
		}
		s.ok("undone")

	case "redo":
		if err := s.svc.Store.Redo(); err != nil {
			s.fail(err)
			return false
		}
		s.ok("redone")

	case "save":
		if len(rest) < 1 {
			s.say("usage: save <name>")
			return false
		}
		s.saveProject(strings.Join(rest, " "))

	case "open":
		if len(rest) < 1 {
			s.say("usage: open <name>")
			return false
		}
		s.openProject(strings.Join(rest, " "))

	case "projects":
		s.listProjects()

	case "preset":
		if len(rest) < 1 {
			s.say("usage: preset <name>")
			return false
		}
		s.loadPreset(strings.Join(rest, " "))

	case "presets":
		for _, name := range s.svc.Presets.Names() {
			s.say("%s %s", ux.IconBullet.Render(), name)
		}

	case "export":
		if len(rest) != 1 {
			s.say("usage: export <file>")
			return false
		}
		data, err := s.svc.Store.ExportJSON()
		if err != nil {
			s.fail(err)
			return false
		}
		if err := os.WriteFile(rest[0], data, 0644); err != nil {
			s.fail(err)
			return false
		}
		s.ok("exported to %s", rest[0])

	case "render":
		if len(rest) < 1 {
			s.say("usage: render <file> [seconds]")
			return false
		}
		seconds := 5.0
		if len(rest) > 1 {
			parsed, err := strconv.ParseFloat(rest[1], 64)
			if err != nil {
				s.say("usage: render <file> [seconds]")
				return false
			}
			seconds = parsed
		}
		if s.svc.Store.Playing() {
			s.fail(errors.New("pause the transport before rendering"))
			return false
		}
		if err := s.svc.Backend.RenderWAVFile(rest[0], seconds); err != nil {
			s.fail(err)
			return false
		}
		s.ok("rendered %.1fs to %s", seconds, rest[0])

	case "clear":
		s.svc.Store.ClearAllNodes()
		s.ok("cleared")

	case "kinds":
		defs := s.svc.Registry.Kinds()
		for _, def := range defs {
			s.say("%s %-12s %s", ux.IconBullet.Render(), def.Kind, def.Label)
		}

	default:
		s.say("unknown command %q, try 'help'", verb)
	}
	return false
}

// printState renders the nodes and edges tables plus the transport and
// history flags, mirroring what the editor UI shows.
func (s *editSession) printState() {
	nodes := s.svc.Store.Nodes()
	if len(nodes) == 0 {
		s.say("empty graph")
	} else {
		rows := make([][]string, 0, len(nodes))
		for _, n := range nodes {
			rows = append(rows, []string{n.ID, string(n.Kind), string(n.Status), propSummary(n.Properties)})
		}
		s.say("%s", ux.Table([]string{"ID", "KIND", "STATUS", "PROPERTIES"}, rows))
	}

	edges := s.svc.Store.Edges()
	if len(edges) > 0 {
		rows := make([][]string, 0, len(edges))
		for _, e := range edges {
			rows = append(rows, []string{
				e.ID,
				e.SourceNodeID + "." + e.SourceOutput,
				e.TargetNodeID + "." + e.TargetInput,
				string(e.Class),
			})
		}
		s.say("%s", ux.Table([]string{"EDGE", "FROM", "TO", "CLASS"}, rows))
	}

	transport := "paused"
	if s.svc.Store.Playing() {
		transport = "playing"
	}
	s.say("transport: %s  undo: %v  redo: %v",
		transport, s.svc.Store.CanUndo(), s.svc.Store.CanRedo())
}

func (s *editSession) saveProject(name string) {
	ctx := context.Background()
	data, err := s.svc.Store.ExportJSON()
	if err != nil {
		s.fail(err)
		return
	}
	if info, err := findProject(ctx, s.svc.Projects, name); err == nil {
		if err := s.svc.Projects.Update(ctx, info.ID, info.Name, data); err != nil {
			s.fail(err)
			return
		}
		s.ok("updated %q", info.Name)
		return
	}
	id, err := s.svc.Projects.Save(ctx, name, data)
	if err != nil {
		s.fail(err)
		return
	}
	s.ok("saved %q (%s)", name, id)
}

func (s *editSession) openProject(name string) {
	ctx := context.Background()
	info, err := findProject(ctx, s.svc.Projects, name)
	if err != nil {
		s.fail(err)
		return
	}
	rec, err := s.svc.Projects.Load(ctx, info.ID)
	if err != nil {
		s.fail(err)
		return
	}
	if _, err := s.svc.Store.LoadJSON(rec.Snapshot); err != nil {
		s.fail(err)
		return
	}
	nodes, edges := s.svc.Store.Counts()
	s.ok("opened %q (%d nodes, %d edges)", rec.Name, nodes, edges)
}

func (s *editSession) listProjects() {
	infos, err := s.svc.Projects.ListAll(context.Background())
	if err != nil {
		s.fail(err)
		return
	}
	if len(infos) == 0 {
		s.say("no saved projects")
		return
	}
	for _, info := range infos {
		s.say("%s %s", ux.IconBullet.Render(), info.Name)
	}
}

func (s *editSession) loadPreset(name string) {
	snap, err := s.svc.Presets.Get(name)
	if err != nil {
		s.fail(err)
		return
	}
	if _, err := s.svc.Store.LoadSnapshot(snap); err != nil {
		s.fail(err)
		return
	}
	nodes, edges := s.svc.Store.Counts()
	s.ok("loaded preset %q (%d nodes, %d edges)", name, nodes, edges)
}

// parseValue maps a shell token onto the property types the registry
// understands: bools, numbers, and bare strings.
func parseValue(token string) any {
	switch token {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}
	return token
}

// propSummary flattens a property map into "k=v" pairs in key order.
func propSummary(props map[string]any) string {
	if len(props) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, props[k])
	}
	return strings.Join(parts, " ")
}
