//go:build ignore

// Dev script to audition every builtin preset offline.
// Run with: go run scripts/render_presets.go
package main

import (
	"fmt"
	"log"
	"time"

	"github.com/AleutianAI/Patchbay/services/patchbay"
	"github.com/AleutianAI/Patchbay/services/patchbay/graph"
)

func main() {
	svc, err := patchbay.New(patchbay.Config{})
	if err != nil {
		log.Fatalf("boot service: %v", err)
	}
	defer svc.Close()

	for _, name := range svc.Presets.Names() {
		snap, err := svc.Presets.Get(name)
		if err != nil {
			log.Fatalf("load preset %s: %v", name, err)
		}
		report, err := svc.Store.LoadSnapshot(snap)
		if err != nil {
			log.Fatalf("build graph %s: %v", name, err)
		}
		if !report.Clean() {
			fmt.Printf("  warning: %s needed sanitizing: %+v\n", name, report)
		}

		// Clip nodes decode their sample asynchronously.
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) && pendingCount(svc) > 0 {
			time.Sleep(50 * time.Millisecond)
		}

		out := name + ".wav"
		start := time.Now()
		if err := svc.Backend.RenderWAVFile(out, 3.0); err != nil {
			log.Fatalf("render %s: %v", name, err)
		}
		nodes, edges := svc.Store.Counts()
		fmt.Printf("rendered %-16s %2d nodes %2d edges -> %s (%s)\n",
			name, nodes, edges, out, time.Since(start).Round(time.Millisecond))
	}
}

func pendingCount(svc *patchbay.Service) int {
	pending := 0
	for _, n := range svc.Store.Nodes() {
		if n.Status == graph.StatusPending {
			pending++
		}
	}
	return pending
}
