package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/chatlens/chatlens/internal/host"
)

var serveStdio bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Speak the line-JSON analysis protocol",
	Long: `Serve reads one JSON request per line from stdin and writes one JSON
response per line to stdout. Requests carry a correlation id, an operation
name, and an operation payload; responses echo the id. Requests run
concurrently, so responses may arrive out of order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !serveStdio {
			return fmt.Errorf("serve currently requires --stdio")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		h := host.New(host.Options{
			DataDir:       cfg.DataDir,
			GapThreshold:  cfg.GapThreshold,
			LaughKeywords: cfg.LaughKeywords,
			Watch:         true,
		})
		defer h.Close()

		log.Println("[serve] stdio protocol ready")
		return runStdio(cmd.Context(), h, os.Stdin, os.Stdout)
	},
}

// runStdio pumps the line protocol: each request line is handled on its own
// goroutine so a slow analysis never blocks the input loop, and responses are
// serialized through a single writer.
func runStdio(ctx context.Context, h *host.Host, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)

	writer := bufio.NewWriter(out)
	var writeMu sync.Mutex
	var wg sync.WaitGroup

	emit := func(resp host.Response) {
		data, err := json.Marshal(resp)
		if err != nil {
			// Result not serializable; degrade to an error response.
			data, _ = json.Marshal(host.Response{ID: resp.ID, OK: false, Error: "response serialization failed"})
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		writer.Write(data)
		writer.WriteByte('\n')
		if err := writer.Flush(); err != nil {
			log.Printf("[serve] write error: %v", err)
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		id, cmd, err := host.DecodeRequest([]byte(line))
		if err != nil {
			emit(host.Response{ID: id, OK: false, Error: err.Error()})
			continue
		}

		wg.Add(1)
		go func(id string, cmd host.Command) {
			defer wg.Done()
			result, err := h.Call(ctx, cmd)
			if err != nil {
				emit(host.Response{ID: id, OK: false, Error: err.Error()})
				return
			}
			emit(host.Response{ID: id, OK: true, Result: result})
		}(id, cmd)
	}

	wg.Wait()
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("stdin error: %w", err)
	}
	return nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveStdio, "stdio", false, "Serve the protocol over stdin/stdout")
	rootCmd.AddCommand(serveCmd)
}
