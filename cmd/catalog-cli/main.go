package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ukcatalog/core/internal/config"
	"github.com/ukcatalog/core/internal/events"
	"github.com/ukcatalog/core/internal/matcher"
	"github.com/ukcatalog/core/internal/orchestrator"
	"github.com/ukcatalog/core/internal/store"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	gateway := os.Getenv("CATALOG_GATEWAY_URL")
	if gateway == "" {
		gateway = "http://localhost:8080"
	}

	switch os.Args[1] {
	case "process":
		cmdProcess()
	case "rebuild":
		cmdRebuild()
	case "progress":
		cmdProgress(gateway)
	case "audit":
		cmdAudit(gateway)
	case "catalog":
		cmdCatalog(gateway)
	case "compliance":
		cmdCompliance(gateway)
	case "version":
		fmt.Printf("catalog-cli v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println(`UK Savings Catalog CLI v` + version + `

Usage: catalog <command> [flags]

Subprocess commands (run the pipeline directly against the local store):
  process --file <path> [--stop-after <stage>]   Run process_file
  rebuild                                         Run rebuild_from_raw over products_raw

Gateway commands (talk to a running catalog-server):
  progress --batch <batch-id>     get_progress
  audit --batch <batch-id>        get_audit
  catalog [--platform p] [--account-type t] [--regulator-id r]
  compliance report
  compliance diversify [--account-type t]

  version   Print version
  help      Show this help

Environment:
  CATALOG_GATEWAY_URL   Gateway URL for gateway commands (default: http://localhost:8080)
  CATALOG_DATA_DIR      Data directory for subprocess commands (falls back to config)
  CATALOG_DB_FILE       Database file name for subprocess commands

Exit codes: 0 success, 1 success with warnings (e.g. empty result), 2 error.`)
}

// ----------------------------------------------------------------
// subprocess commands: process, rebuild
// ----------------------------------------------------------------

func cmdProcess() {
	var filePath, stopAfter string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--file":
			i++
			if i < len(args) {
				filePath = args[i]
			}
		case "--stop-after":
			i++
			if i < len(args) {
				stopAfter = args[i]
			}
		}
	}
	if filePath == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required")
		os.Exit(2)
	}

	orch, cleanup := newSubprocessOrchestrator()
	defer cleanup()

	cfg := config.Get()
	result, err := orch.Run(context.Background(), cfg, orchestrator.RunParams{
		FilePath:  filePath,
		StopAfter: orchestrator.Stage(stopAfter),
	})
	emitResult(result, err)
}

func cmdRebuild() {
	orch, cleanup := newSubprocessOrchestrator()
	defer cleanup()

	cfg := config.Get()
	result, err := orch.RebuildFromRaw(context.Background(), cfg)
	emitResult(result, err)
}

// newSubprocessOrchestrator opens the store directly and wires progress
// updates onto stderr as PROGRESS:<percent>:<message> lines while the batch
// runs, the same shape a parent process parsing this CLI's output expects.
func newSubprocessOrchestrator() (*orchestrator.Orchestrator, func()) {
	cfg := config.Get()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Store.DataDir, cfg.Store.DBFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open store: %v\n", err)
		os.Exit(2)
	}

	bus := events.NewEventBus()
	sub := bus.Subscribe("catalog.batch.progress")
	go func() {
		for ev := range sub {
			percent, _ := ev.Data["percent"].(int)
			message, _ := ev.Data["message"].(string)
			fmt.Fprintf(os.Stderr, "PROGRESS:%d:%s\n", percent, message)
		}
	}()

	cache := matcher.NewCache()
	orch := orchestrator.New(st, cache, bus, cfg.Orchestrator)

	return orch, func() {
		bus.Unsubscribe(sub)
		st.Close()
	}
}

func emitResult(result *orchestrator.RunResult, err error) {
	if err != nil {
		writeJSONStdout(map[string]interface{}{"error": err.Error()})
		os.Exit(2)
	}
	writeJSONStdout(result)
	if result == nil || result.RecordsMatched == 0 {
		os.Exit(1)
	}
	os.Exit(0)
}

func writeJSONStdout(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// ----------------------------------------------------------------
// gateway commands: progress, audit, catalog, compliance
// ----------------------------------------------------------------

func cmdProgress(gateway string) {
	batchID := flagValue(os.Args[2:], "--batch")
	if batchID == "" {
		fmt.Fprintln(os.Stderr, "Usage: catalog progress --batch <batch-id>")
		os.Exit(2)
	}
	resp, err := doRequest("GET", gateway+"/api/v1/batches/"+batchID+"/progress", nil)
	printOrExit(resp, err)
}

func cmdAudit(gateway string) {
	batchID := flagValue(os.Args[2:], "--batch")
	if batchID == "" {
		fmt.Fprintln(os.Stderr, "Usage: catalog audit --batch <batch-id>")
		os.Exit(2)
	}
	resp, err := doRequest("GET", gateway+"/api/v1/batches/"+batchID+"/audit", nil)
	printOrExit(resp, err)
}

func cmdCatalog(gateway string) {
	args := os.Args[2:]
	url := gateway + "/api/v1/catalog"
	q := ""
	if v := flagValue(args, "--platform"); v != "" {
		q += "&platform=" + v
	}
	if v := flagValue(args, "--account-type"); v != "" {
		q += "&account_type=" + v
	}
	if v := flagValue(args, "--regulator-id"); v != "" {
		q += "&regulator_id=" + v
	}
	if q != "" {
		url += "?" + q[1:]
	}
	resp, err := doRequest("GET", url, nil)
	printOrExit(resp, err)
}

func cmdCompliance(gateway string) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: catalog compliance <report|diversify>")
		os.Exit(2)
	}
	switch os.Args[2] {
	case "report":
		resp, err := doRequest("GET", gateway+"/api/v1/compliance/report", nil)
		printOrExit(resp, err)
	case "diversify":
		accountType := flagValue(os.Args[3:], "--account-type")
		body, _ := json.Marshal(map[string]string{"account_type": accountType})
		resp, err := doRequest("POST", gateway+"/api/v1/compliance/diversify", body)
		printOrExit(resp, err)
	default:
		fmt.Fprintln(os.Stderr, "Usage: catalog compliance <report|diversify>")
		os.Exit(2)
	}
}

func printOrExit(resp []byte, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: request failed: %v\n", err)
		os.Exit(2)
	}
	var pretty map[string]interface{}
	if json.Unmarshal(resp, &pretty) == nil {
		writeJSONStdout(pretty)
	} else {
		os.Stdout.Write(resp)
	}
}

func flagValue(args []string, name string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func doRequest(method, url string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
