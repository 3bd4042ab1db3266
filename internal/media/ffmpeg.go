package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Static errors for media operations.
var (
	// ErrInputNotFound is returned when an input file does not exist.
	ErrInputNotFound = errors.New("input file not found")
	// ErrUnsupportedFormat is returned when an input has an unsupported container extension.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrOutOfMemory is returned when ffmpeg fails in a way that indicates
	// memory exhaustion, so callers can suggest resolution reduction.
	ErrOutOfMemory = errors.New("out of memory during processing")
)

// supportedExtensions are the container formats accepted as input.
var supportedExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
	".wmv": true,
	".flv": true,
}

// SupportedExtension reports whether name carries an accepted container
// extension. It works on bare filenames, so callers can reject uploads
// before writing them to disk.
func SupportedExtension(name string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(name))]
}

// ValidateInput checks that path names an existing file with a supported
// container extension.
func ValidateInput(path string) error {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if !SupportedExtension(path) {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, strings.ToLower(filepath.Ext(path)))
	}
	return nil
}

// Engine executes video operations by building ffmpeg filter graphs and
// running them through the ffmpeg CLI. It implements Processor.
type Engine struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	prober     *Prober
	logger     *slog.Logger
}

// NewEngine creates an Engine. If ffmpegPath is empty, it defaults to
// "ffmpeg" (found via PATH). A nil logger falls back to slog.Default().
func NewEngine(ffmpegPath string, prober *Prober, logger *slog.Logger) *Engine {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if prober == nil {
		prober = NewProber(logger)
	}
	return &Engine{
		ffmpegPath: ffmpegPath,
		prober:     prober,
		logger:     logger,
	}
}

// Probe extracts metadata from the video at path.
func (e *Engine) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	return e.prober.Probe(ctx, path)
}

// run compiles a stream graph into command-line arguments and executes it.
// Graphs are built with ffmpeg-go; execution goes through our own runner
// so we control cancellation and stderr capture.
func (e *Engine) run(ctx context.Context, stream *ffmpeg.Stream) error {
	return e.runArgs(ctx, stream.OverWriteOutput().GetArgs())
}

// runArgs executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (e *Engine) runArgs(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Check if context was cancelled
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		ffErr := &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
		if ffErr.OutOfMemory() {
			return fmt.Errorf("%w: %w", ErrOutOfMemory, ffErr)
		}
		return ffErr
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// OutOfMemory reports whether the failure looks like memory exhaustion,
// either from allocation failures in stderr or from the process being
// killed by SIGKILL (the usual OOM-killer signature).
func (e *FFmpegError) OutOfMemory() bool {
	stderr := strings.ToLower(e.Stderr)
	for _, marker := range []string{
		"cannot allocate memory",
		"out of memory",
		"failed to allocate",
		"error allocating",
	} {
		if strings.Contains(stderr, marker) {
			return true
		}
	}

	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() && status.Signal() == syscall.SIGKILL {
				return true
			}
		}
	}
	return false
}

// evenFloor rounds n down to the nearest even number. Encoders working in
// yuv420p reject odd dimensions, so computed dimensions pass through here
// before reaching a filter.
func evenFloor(n int) int {
	if n%2 != 0 {
		return n - 1
	}
	return n
}
