// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/stilch/root.go
// Summary: CLI wiring: config, backends, query socket.
// Usage: stilch [--config PATH] [--winit|--x11|--ascii|--term] [--socket PATH]

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stilch/stilch/backend/termdebug"
	"github.com/stilch/stilch/config"
	"github.com/stilch/stilch/core"
	"github.com/stilch/stilch/server"
)

const (
	exitOK          = 0
	exitInitFailure = 1
	exitConfigFatal = 2
)

var (
	flagConfig  string
	flagSocket  string
	flagWinit   bool
	flagX11     bool
	flagTTYUdev bool
	flagAscii   bool
	flagTerm    bool
	flagStrict  bool
)

func run() int {
	code := exitOK
	root := &cobra.Command{
		Use:           "stilch",
		Short:         "Tiling compositor core with virtual outputs and cursor continuity",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code = runCompositor()
			return nil
		},
	}
	root.Flags().StringVar(&flagConfig, "config", "", "path to the config file")
	root.Flags().StringVar(&flagSocket, "socket", "", "path for the state query socket")
	root.Flags().BoolVar(&flagWinit, "winit", false, "nested windowed mode (synthetic 1920x1080 output)")
	root.Flags().BoolVar(&flagX11, "x11", false, "nested X11 mode (synthetic 1920x1080 output)")
	root.Flags().BoolVar(&flagTTYUdev, "tty-udev", false, "native DRM/KMS session")
	root.Flags().BoolVar(&flagAscii, "ascii", false, "print the layout as text, then serve until an exit command")
	root.Flags().BoolVar(&flagTerm, "term", false, "interactive terminal layout viewer")
	root.Flags().BoolVar(&flagStrict, "strict-invariants", false, "treat invariant violations as fatal")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInitFailure
	}
	return code
}

func runCompositor() int {
	snap := core.DefaultConfigSnapshot()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			log.Printf("stilch: config load failed: %v", err)
			return exitConfigFatal
		}
		snap = loaded
	}

	if flagTTYUdev {
		log.Printf("stilch: the DRM/KMS session backend is not part of this build")
		return exitInitFailure
	}

	engine := core.NewEngine(snap, flagStrict)

	if flagConfig != "" {
		watcher, err := config.Watch(flagConfig, engine.Submit)
		if err != nil {
			log.Printf("stilch: config watch failed: %v", err)
			return exitInitFailure
		}
		defer watcher.Close()
	}

	if flagSocket != "" {
		srv, err := server.Listen(flagSocket, engine.PublishedSnapshot, engine.Submit)
		if err != nil {
			log.Printf("stilch: socket listen failed: %v", err)
			return exitInitFailure
		}
		defer srv.Close()
	}

	// The nested modes host the whole logical space in one synthetic
	// output, the way the windowed backends present it. Seeded before
	// the loop starts so the first snapshot already carries it.
	if flagWinit || flagX11 || flagAscii || flagTerm {
		engine.HandleEvent(core.OutputAdded{
			Name:      "synthetic-0",
			Region:    core.Rect{W: 1920, H: 1080},
			MMW:       527,
			MMH:       296,
			Scale:     1,
			RefreshHz: 60,
		})
		engine.Publish()
	}

	done := make(chan error, 1)
	go func() { done <- engine.Run() }()
	defer engine.Close()

	switch {
	case flagTerm:
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			log.Printf("stilch: --term requires a terminal; use --ascii instead")
			return exitInitFailure
		}
		screen, err := tcell.NewScreen()
		if err != nil {
			log.Printf("stilch: terminal init failed: %v", err)
			return exitInitFailure
		}
		viewer := termdebug.NewViewer(termdebug.NewTcellScreenDriver(screen), engine.PublishedSnapshot)
		if err := viewer.Run(); err != nil {
			log.Printf("stilch: viewer failed: %v", err)
			return exitInitFailure
		}
		return exitOK
	case flagAscii:
		r := termdebug.NewRenderer()
		fmt.Print(r.Render(engine.PublishedSnapshot()))
		<-engine.ExitRequested
		return exitOK
	}

	select {
	case <-engine.ExitRequested:
		return exitOK
	case err := <-done:
		if err != nil {
			log.Printf("stilch: %v", err)
			return exitInitFailure
		}
		return exitOK
	}
}
