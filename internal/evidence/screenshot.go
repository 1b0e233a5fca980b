// Package evidence captures screenshots of suspicious profiles and keeps
// them as case evidence.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/infrastructure/resilience"
	"hyaluron-watch/pkg/logger"
)

var (
	// ErrDisabled is returned when screenshots are turned off or no API key is set
	ErrDisabled = errors.New("screenshot capture disabled")

	// ErrCircuitOpen is returned while the screenshot API is considered down
	ErrCircuitOpen = resilience.ErrCircuitOpen
)

// ScreenshotStore persists screenshot records
type ScreenshotStore interface {
	CreateScreenshot(ctx context.Context, s *models.Screenshot) error
}

// Service captures screenshots through a screenshot API and writes them
// under the configured directory
type Service struct {
	cfg     config.ScreenshotConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[string]
	store   ScreenshotStore
	now     func() time.Time
	logger  *logger.Logger
}

// NewService creates a new screenshot service. store may be nil.
func NewService(cfg config.ScreenshotConfig, store ScreenshotStore, onBreaker resilience.StateListener, log *logger.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if cfg.Dir == "" {
		cfg.Dir = "screenshots"
	}

	return &Service{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		breaker: resilience.NewBreaker[string]("screenshot-api", cfg.Breaker, log, onBreaker),
		store:   store,
		now:     time.Now,
		logger:  log.WithComponent("evidence"),
	}
}

// Enabled reports whether captures will be attempted
func (s *Service) Enabled() bool {
	return s.cfg.Enabled && s.cfg.APIKey != ""
}

// CaptureAndStore captures targetURL and records the screenshot against
// the profile and optional post
func (s *Service) CaptureAndStore(ctx context.Context, targetURL string, profileID uuid.UUID, postID *uuid.UUID) (*models.Screenshot, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}

	capturedAt := s.now()
	path := filepath.Join(s.cfg.Dir, FileName(targetURL, capturedAt))

	_, err := s.breaker.Execute(func() (string, error) {
		return path, s.capture(ctx, targetURL, path)
	})
	if err != nil {
		err = resilience.Translate(err)
		s.logger.Error().Err(err).Str("url", targetURL).Msg("screenshot capture failed")
		return nil, fmt.Errorf("failed to capture %s: %w", targetURL, err)
	}

	shot := &models.Screenshot{
		ID:         uuid.New(),
		ProfileID:  profileID,
		PostID:     postID,
		URL:        targetURL,
		FilePath:   path,
		IsEvidence: true,
		Metadata: map[string]any{
			"capture_date": capturedAt.Format(time.RFC3339),
			"full_page":    s.cfg.FullPage,
			"width":        s.cfg.Width,
			"height":       s.cfg.Height,
		},
		CapturedAt: capturedAt,
	}

	if s.store != nil {
		if err := s.store.CreateScreenshot(ctx, shot); err != nil {
			return shot, fmt.Errorf("failed to store screenshot record: %w", err)
		}
	}

	s.logger.Info().
		Str("url", targetURL).
		Str("file", path).
		Msg("screenshot captured")

	return shot, nil
}

func (s *Service) capture(ctx context.Context, targetURL, path string) error {
	params := url.Values{}
	params.Set("token", s.cfg.APIKey)
	params.Set("url", targetURL)
	params.Set("output", "image")
	params.Set("file_type", "png")
	params.Set("width", strconv.Itoa(s.cfg.Width))
	params.Set("height", strconv.Itoa(s.cfg.Height))
	params.Set("full_page", strconv.FormatBool(s.cfg.FullPage))
	params.Set("delay", strconv.FormatInt(s.cfg.Delay.Milliseconds(), 10))
	params.Set("fresh", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIURL+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("screenshot API returned status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/json") || strings.HasPrefix(ct, "text/") {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("screenshot API returned %s: %s", ct, strings.TrimSpace(string(body)))
	}

	return writeFile(path, resp.Body)
}

// writeFile streams r into path through a temporary file so a failed
// download never leaves a partial image behind
func writeFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".capture-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// FileName builds <host>_<yyyymmdd_hhmmss>_<suffix>.png with dots in the
// host replaced by underscores
func FileName(targetURL string, at time.Time) string {
	host := "unknown"
	if u, err := url.Parse(targetURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.NewReplacer(".", "_", ":", "_").Replace(host)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s_%s_%s.png", host, at.Format("20060102_150405"), suffix)
}
