package worker

import (
	"context"
	"encoding/json"
	"io"
	"os/signal"
	"syscall"

	"archivist/internal/archive"
	"archivist/internal/config"
	"archivist/internal/logging"
)

// Subcommand is the hidden argv token that dispatches the daemon binary
// into worker mode.
const Subcommand = "fetch-worker"

// Main is the worker process entrypoint. It reads a Payload from stdin,
// performs the transfer, and writes a Result to stdout. The return value
// is the process exit code.
func Main(stdin io.Reader, stdout, stderr io.Writer) int {
	var payload Payload
	if err := json.NewDecoder(stdin).Decode(&payload); err != nil {
		writeResult(stdout, Result{Error: "decode payload: " + err.Error()})
		return 1
	}

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.String(logging.FieldJobID, payload.JobID))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	cfg.Remote = payload.Remote
	client := archive.NewClient(&cfg, logger)

	files := payload.Files
	if len(files) == 0 {
		item, err := client.Item(ctx, payload.Identifier)
		if err != nil {
			logger.Error("item lookup failed", logging.Error(err))
			writeResult(stdout, Result{Error: "item lookup: " + err.Error()})
			return 1
		}
		files, err = archive.SelectFiles(item.Files, payload.Selection)
		if err != nil {
			writeResult(stdout, Result{Error: err.Error()})
			return 1
		}
	}

	logger.Info("transfer starting",
		logging.String(logging.FieldIdentifier, payload.Identifier),
		logging.Int("files", len(files)))

	if err := client.Fetch(ctx, payload.Identifier, files, payload.DestDir, payload.Options); err != nil {
		message := err.Error()
		if message == "" {
			message = "transfer failed"
		}
		logger.Error("transfer failed", logging.Error(err))
		writeResult(stdout, Result{Error: message})
		return 1
	}

	logger.Info("transfer finished")
	writeResult(stdout, Result{Success: true})
	return 0
}

func writeResult(stdout io.Writer, result Result) {
	encoder := json.NewEncoder(stdout)
	_ = encoder.Encode(result)
}
