package main

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/chatlens/chatlens/internal/host"
)

func TestRunStdio(t *testing.T) {
	h := host.New(host.Options{DataDir: t.TempDir()})
	defer h.Close()

	input := strings.Join([]string{
		`{"id":"r1","op":"ping"}`,
		``, // blank lines are skipped
		`{"id":"r2","op":"list_sessions"}`,
		`{"id":"r3","op":"nope"}`,
	}, "\n") + "\n"

	var out strings.Builder
	if err := runStdio(context.Background(), h, strings.NewReader(input), &out); err != nil {
		t.Fatalf("runStdio failed: %v", err)
	}

	responses := map[string]host.Response{}
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		var resp host.Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("invalid response line %q: %v", scanner.Text(), err)
		}
		responses[resp.ID] = resp
	}

	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3: %v", len(responses), responses)
	}
	if r := responses["r1"]; !r.OK || r.Result != "pong" {
		t.Errorf("ping response = %+v", r)
	}
	if r := responses["r2"]; !r.OK {
		t.Errorf("list response = %+v", r)
	}
	if r := responses["r3"]; r.OK || !strings.Contains(r.Error, "unknown operation") {
		t.Errorf("unknown op response = %+v", r)
	}
}
