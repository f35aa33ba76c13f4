package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Prober loads the duration of a playable media URL
type Prober interface {
	Duration(ctx context.Context, mediaURL string) (time.Duration, error)
}

// DurationProbeError is returned when the duration of one item cannot be loaded
type DurationProbeError struct {
	URL string
	Err error
}

func (e *DurationProbeError) Error() string {
	return fmt.Sprintf("failed to probe duration of %s: %v", e.URL, e.Err)
}

func (e *DurationProbeError) Unwrap() error {
	return e.Err
}

// FFprobe probes durations by running ffprobe. Durations are memoized per URL;
// a manifest's duration does not change once transcoding has finished.
type FFprobe struct {
	path    string
	timeout time.Duration
	cache   *cache.Cache
	logger  *logrus.Logger
}

// NewFFprobe creates a prober using the ffprobe binary at path
func NewFFprobe(path string, logger *logrus.Logger) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{
		path:    path,
		timeout: 30 * time.Second,
		cache:   cache.New(time.Hour, 10*time.Minute),
		logger:  logger,
	}
}

// Duration returns the media duration of mediaURL
func (p *FFprobe) Duration(ctx context.Context, mediaURL string) (time.Duration, error) {
	if cached, ok := p.cache.Get(mediaURL); ok {
		return cached.(time.Duration), nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		mediaURL,
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(probeCtx, p.path, args...)
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return 0, &DurationProbeError{URL: mediaURL, Err: err}
	}

	duration, err := ParseDuration(string(out))
	if err != nil {
		return 0, &DurationProbeError{URL: mediaURL, Err: err}
	}

	p.logger.WithFields(logrus.Fields{
		"url":      mediaURL,
		"duration": duration,
	}).Debug("Probed media duration")

	p.cache.Set(mediaURL, duration, cache.DefaultExpiration)
	return duration, nil
}

// ParseDuration parses ffprobe's seconds output ("12.345000")
func ParseDuration(output string) (time.Duration, error) {
	value := strings.TrimSpace(output)
	if value == "" || value == "N/A" {
		return 0, errors.New("duration unavailable")
	}
	// Only the first line carries the format duration
	if idx := strings.IndexByte(value, '\n'); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if seconds < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
