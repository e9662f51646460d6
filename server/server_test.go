package server

import (
	"bufio"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stilch/stilch/core"
)

func startTestServer(t *testing.T) (*Server, *core.Engine) {
	t.Helper()
	engine := core.NewEngine(core.DefaultConfigSnapshot(), true)
	engine.HandleEvent(core.OutputAdded{
		Name:   "DP-1",
		Region: core.Rect{W: 1000, H: 800},
		MMW:    300, MMH: 200,
		Scale: 1, RefreshHz: 60,
	})
	engine.HandleEvent(core.WindowMapped{Hints: core.SizeHints{Title: "shell"}})
	engine.Publish()

	sock := filepath.Join(t.TempDir(), "stilch.sock")
	srv, err := Listen(sock, engine.PublishedSnapshot, func(ev core.Event) {
		engine.HandleEvent(ev)
		engine.Publish()
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, engine
}

func roundTrip(t *testing.T, conn net.Conn, req Request) Response {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		t.Fatal(err)
	}
	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatalf("no response: %v", scanner.Err())
	}
	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("bad response %q: %v", scanner.Text(), err)
	}
	return resp
}

func dialTestServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("unix", srv.Addr().String(), time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestQueryWindows(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialTestServer(t, srv)

	resp := roundTrip(t, conn, Request{Type: "get_windows"})
	if !resp.OK {
		t.Fatalf("error: %s", resp.Error)
	}
	if len(resp.Windows) != 1 {
		t.Fatalf("expected one window, got %d", len(resp.Windows))
	}
	if resp.Windows[0].Title != "shell" || !resp.Windows[0].Focused {
		t.Errorf("window snapshot %+v", resp.Windows[0])
	}
}

func TestQueryOutputsAndWorkspaces(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialTestServer(t, srv)

	resp := roundTrip(t, conn, Request{Type: "get_outputs"})
	if !resp.OK || len(resp.Outputs) != 1 {
		t.Fatalf("outputs: %+v", resp)
	}
	if resp.Outputs[0].Workspace != 1 {
		t.Errorf("output should show workspace 1, got %d", resp.Outputs[0].Workspace)
	}

	resp = roundTrip(t, conn, Request{Type: "get_workspaces"})
	if !resp.OK || len(resp.Workspaces) != core.DefaultWorkspaceCount {
		t.Fatalf("workspaces: %+v", resp)
	}
}

func TestCommandInjection(t *testing.T) {
	srv, engine := startTestServer(t)
	conn := dialTestServer(t, srv)

	resp := roundTrip(t, conn, Request{Type: "command", Command: "workspace 5"})
	if !resp.OK {
		t.Fatalf("command failed: %s", resp.Error)
	}
	snap := engine.PublishedSnapshot()
	if snap.Outputs[0].Workspace != 5 {
		t.Errorf("workspace after command: %d", snap.Outputs[0].Workspace)
	}

	resp = roundTrip(t, conn, Request{Type: "command", Command: "gibberish"})
	if resp.OK || resp.Error == "" {
		t.Errorf("unparseable command should error, got %+v", resp)
	}
}

func TestUnknownRequestType(t *testing.T) {
	srv, _ := startTestServer(t)
	conn := dialTestServer(t, srv)
	resp := roundTrip(t, conn, Request{Type: "get_everything"})
	if resp.OK || resp.Error == "" {
		t.Errorf("unknown type should error, got %+v", resp)
	}
}
