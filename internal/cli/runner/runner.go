// --- START OF FINAL REVISED FILE internal/cli/runner/runner.go ---
// Package runner implements extractor.FieldExtractor by running an external
// command once per file and reading its JSON answer.
//
// Protocol: the command receives {"$schemaVersion","filePath"} on stdin and
// writes {"$schemaVersion","fields":{...}} or {"$schemaVersion","error","errorKind"}
// on stdout.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stackvity/dicom-extractor/pkg/extractor"
)

const (
	// maxLogOutputBytes limits stdout/stderr quoted in logs and messages.
	maxLogOutputBytes = 512
	// maxOutputBytes caps captured stdout/stderr per invocation.
	maxOutputBytes = 10 * 1024 * 1024
	// waitDelay bounds how long Wait blocks on pipes held by grandchildren
	// after the command is killed.
	waitDelay = 2 * time.Second
)

const outputSchemaJSON = `{
  "type": "object",
  "required": ["$schemaVersion"],
  "properties": {
    "$schemaVersion": {"type": "string"},
    "fields": {"type": "object"},
    "error": {"type": "string"},
    "errorKind": {"enum": ["malformed", "unsupported", "io"]}
  },
  "anyOf": [{"required": ["fields"]}, {"required": ["error"]}]
}`

type commandInput struct {
	SchemaVersion string `json:"$schemaVersion"`
	FilePath      string `json:"filePath"`
}

type commandOutput struct {
	SchemaVersion string          `json:"$schemaVersion"`
	Fields        json.RawMessage `json:"fields"`
	Error         string          `json:"error"`
	ErrorKind     string          `json:"errorKind"`
}

// CommandExtractor runs Command for every file. It is safe for concurrent use.
type CommandExtractor struct {
	command []string
	schema  *gojsonschema.Schema
	logger  *slog.Logger
}

// NewCommandExtractor validates argv and compiles the output schema.
func NewCommandExtractor(command []string, loggerHandler slog.Handler) (*CommandExtractor, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, fmt.Errorf("%w: extractor command cannot be empty", extractor.ErrConfigValidation)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(outputSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile extractor output schema: %w", err)
	}
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	return &CommandExtractor{
		command: append([]string(nil), command...),
		schema:  schema,
		logger:  slog.New(loggerHandler).With(slog.String("component", "commandExtractor")),
	}, nil
}

// Fingerprint identifies the command for cache invalidation.
func (c *CommandExtractor) Fingerprint() string {
	return "command/" + extractor.CommandSchemaVersion + ":" + strings.Join(c.command, " ")
}

// Extract implements extractor.FieldExtractor.
func (c *CommandExtractor) Extract(ctx context.Context, path string) (*extractor.Record, error) {
	input, err := json.Marshal(commandInput{SchemaVersion: extractor.CommandSchemaVersion, FilePath: path})
	if err != nil {
		return nil, extractor.NewExtractError(extractor.ErrorKindUnknown, path, err)
	}

	stdout := &cappedBuffer{limit: maxOutputBytes}
	stderr := &cappedBuffer{limit: maxOutputBytes}
	cmd := exec.CommandContext(ctx, c.command[0], c.command[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	logArgs := []any{slog.String("path", path), slog.String("command", c.command[0])}
	runErr := cmd.Run()
	stderrText := tail(stderr.String())

	if ctxErr := ctx.Err(); ctxErr != nil {
		kind := extractor.ErrorKindCancelled
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			kind = extractor.ErrorKindTimeout
		}
		c.logger.Debug("Extractor command stopped", append(logArgs, slog.String("reason", ctxErr.Error()))...)
		return nil, extractor.NewExtractError(kind, path, ctxErr)
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		c.logger.Error("Failed to run extractor command", append(logArgs, slog.String("error", runErr.Error()))...)
		return nil, extractor.NewExtractError(extractor.ErrorKindIO, path, fmt.Errorf("run extractor command: %w", runErr))
	}
	if stdout.truncated {
		return nil, extractor.NewExtractError(extractor.ErrorKindMalformed, path, fmt.Errorf("extractor output exceeded %d bytes", maxOutputBytes))
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		if exitErr != nil {
			return nil, extractor.NewExtractError(extractor.ErrorKindMalformed, path,
				fmt.Errorf("extractor exited with code %d: %s", exitErr.ExitCode(), stderrText))
		}
		return nil, extractor.NewExtractError(extractor.ErrorKindMalformed, path, errors.New("extractor returned empty output"))
	}

	parsed, err := c.decode(out)
	if err != nil {
		c.logger.Warn("Invalid extractor output", append(logArgs, slog.String("error", err.Error()), slog.String("stdout", tail(string(out))), slog.String("stderr", stderrText))...)
		return nil, extractor.NewExtractError(extractor.ErrorKindMalformed, path, err)
	}
	if parsed.Error != "" {
		kind := extractor.ErrorKind(parsed.ErrorKind)
		if kind == "" {
			kind = extractor.ErrorKindMalformed
		}
		return nil, extractor.NewExtractError(kind, path, errors.New(parsed.Error))
	}
	if exitErr != nil {
		return nil, extractor.NewExtractError(extractor.ErrorKindMalformed, path,
			fmt.Errorf("extractor exited with code %d: %s", exitErr.ExitCode(), stderrText))
	}

	rec := extractor.NewRecord(path)
	if err := decodeFields(parsed.Fields, rec); err != nil {
		return nil, extractor.NewExtractError(extractor.ErrorKindMalformed, path, err)
	}
	if stderrText != "" {
		c.logger.Debug("Extractor stderr", append(logArgs, slog.String("stderr", stderrText))...)
	}
	return rec, nil
}

// decode validates raw against the output schema and the protocol version.
func (c *CommandExtractor) decode(raw []byte) (commandOutput, error) {
	var out commandOutput
	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return out, fmt.Errorf("extractor output is not valid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return out, fmt.Errorf("extractor output violates schema: %s", strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode extractor output: %w", err)
	}
	if out.SchemaVersion != extractor.CommandSchemaVersion {
		return out, fmt.Errorf("extractor output schema version '%s', expected '%s'", out.SchemaVersion, extractor.CommandSchemaVersion)
	}
	return out, nil
}

// decodeFields copies the fields object into rec, keeping the command's key
// order. Numbers stay json.Number so no precision is lost.
func decodeFields(raw json.RawMessage, rec *extractor.Record) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode fields: %w", err)
		}
		key, _ := tok.(string)
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode field '%s': %w", key, err)
		}
		if key == extractor.PathField {
			continue
		}
		rec.Set(key, value)
	}
	return nil
}

// cappedBuffer keeps the first limit bytes and silently drops the rest so the
// child never blocks on a full pipe.
type cappedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.truncated = true
		_, _ = b.Buffer.Write(p[:room])
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLogOutputBytes {
		return "..." + s[len(s)-maxLogOutputBytes:]
	}
	return s
}

// --- END OF FINAL REVISED FILE internal/cli/runner/runner.go ---
