// Package board files enforcement cases on a monday.com tracking board.
package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/infrastructure/resilience"
	"hyaluron-watch/pkg/logger"
)

var (
	// ErrDisabled is returned when the board integration is not configured
	ErrDisabled = errors.New("board integration disabled")

	// ErrCircuitOpen is returned while the board API is considered down
	ErrCircuitOpen = resilience.ErrCircuitOpen
)

// Board status labels used on new and escalated items
const (
	StatusNew        = "Neu"
	StatusRequested  = "Nachweis angefordert"
	StatusReported   = "Gemeldet"
	StepEvidence     = "Beweissicherung abgeschlossen"
	StepRequestSent  = "Anschreiben versendet"
	StepAuthorityMsg = "Gesundheitsamt informiert"
)

const createItemMutation = `mutation ($boardId: ID!, $itemName: String!, $columnValues: JSON!) {
  create_item (board_id: $boardId, item_name: $itemName, column_values: $columnValues) {
    id
  }
}`

const createUpdateMutation = `mutation ($itemId: ID!, $body: String!) {
  create_update (item_id: $itemId, body: $body) {
    id
  }
}`

const changeColumnsMutation = `mutation ($boardId: ID!, $itemId: ID!, $columnValues: JSON!) {
  change_multiple_column_values (board_id: $boardId, item_id: $itemId, column_values: $columnValues) {
    id
  }
}`

// Entry is the case data written to a new board item
type Entry struct {
	Platform       string
	ProfileName    string
	ProfileLink    string
	PostText       string
	Email          string
	Location       string
	ScreenshotPath string
	RiskScore      float64
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	ErrorMessage string `json:"error_message"`
}

type idResult struct {
	ID string `json:"id"`
}

// Client talks to the monday.com GraphQL API
type Client struct {
	cfg     config.BoardConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[json.RawMessage]
	now     func() time.Time
	logger  *logger.Logger
}

// NewClient creates a new board client
func NewClient(cfg config.BoardConfig, onBreaker resilience.StateListener, log *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		breaker: resilience.NewBreaker[json.RawMessage]("board-api", cfg.Breaker, log, onBreaker),
		now:     time.Now,
		logger:  log.WithComponent("board"),
	}
}

// Enabled reports whether the board is configured
func (c *Client) Enabled() bool {
	return c.cfg.Enabled && c.cfg.APIKey != "" && c.cfg.BoardID != 0
}

// CreateEntry creates a board item for the case and attaches an update
// describing the finding. A failed update is logged, the item ID is still
// returned.
func (c *Client) CreateEntry(ctx context.Context, e Entry) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	columns := map[string]any{
		"plattform":       map[string]string{"text": e.Platform},
		"profil_link":     map[string]string{"text": e.ProfileLink},
		"status":          map[string]string{"label": StatusNew},
		"letzter_schritt": map[string]string{"text": StepEvidence},
	}
	if e.Email != "" {
		columns["email"] = map[string]string{"text": e.Email}
	}
	if e.Location != "" {
		columns["ort"] = map[string]string{"text": e.Location}
	}
	columnJSON, err := json.Marshal(columns)
	if err != nil {
		return "", fmt.Errorf("failed to encode column values: %w", err)
	}

	raw, err := c.execute(ctx, "create_item", createItemMutation, map[string]any{
		"boardId":      strconv.FormatInt(c.cfg.BoardID, 10),
		"itemName":     e.ProfileName,
		"columnValues": string(columnJSON),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create board item: %w", err)
	}

	var item idResult
	if err := json.Unmarshal(raw, &item); err != nil || item.ID == "" {
		return "", fmt.Errorf("board returned no item id")
	}

	c.logger.Info().
		Str("item_id", item.ID).
		Str("profile_name", e.ProfileName).
		Msg("board item created")

	if _, err := c.AddUpdate(ctx, item.ID, FindingText(e, c.now())); err != nil {
		c.logger.Warn().Err(err).Str("item_id", item.ID).Msg("failed to add finding update")
	}

	return item.ID, nil
}

// AddUpdate posts a text update on an item
func (c *Client) AddUpdate(ctx context.Context, itemID, body string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	raw, err := c.execute(ctx, "create_update", createUpdateMutation, map[string]any{
		"itemId": itemID,
		"body":   body,
	})
	if err != nil {
		return "", fmt.Errorf("failed to add board update: %w", err)
	}

	var update idResult
	if err := json.Unmarshal(raw, &update); err != nil {
		return "", fmt.Errorf("failed to decode update: %w", err)
	}
	return update.ID, nil
}

// SetStatus changes the status and last-step columns of an item
func (c *Client) SetStatus(ctx context.Context, itemID, status, step string) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	columnJSON, err := json.Marshal(map[string]any{
		"status":          map[string]string{"label": status},
		"letzter_schritt": map[string]string{"text": step},
	})
	if err != nil {
		return err
	}

	if _, err := c.execute(ctx, "change_multiple_column_values", changeColumnsMutation, map[string]any{
		"boardId":      strconv.FormatInt(c.cfg.BoardID, 10),
		"itemId":       itemID,
		"columnValues": string(columnJSON),
	}); err != nil {
		return fmt.Errorf("failed to update board status: %w", err)
	}
	return nil
}

// FindingText is the update body attached to a new item
func FindingText(e Entry, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Beitrag gefunden am %s\n", at.Format("02.01.2006"))
	if e.PostText != "" {
		fmt.Fprintf(&b, "Zitat: %q\n", e.PostText)
	}
	b.WriteString("Kein Hinweis auf zugelassenes System, kein Lizenznachweis.\n")
	fmt.Fprintf(&b, "Risikobewertung: %.2f\n", e.RiskScore)
	if e.ScreenshotPath != "" {
		fmt.Fprintf(&b, "Screenshot: %s\n", e.ScreenshotPath)
	}
	fmt.Fprintf(&b, "Status: %s", StatusNew)
	return b.String()
}

// execute runs a mutation through the breaker and returns the named field
// of the data object
func (c *Client) execute(ctx context.Context, field, query string, vars map[string]any) (json.RawMessage, error) {
	raw, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.post(ctx, field, query, vars)
	})
	return raw, resilience.Translate(err)
}

func (c *Client) post(ctx context.Context, field, query string, vars map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Version", "2024-10")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("board API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out graphQLResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode board response: %w", err)
	}
	if len(out.Errors) > 0 {
		return nil, fmt.Errorf("board API error: %s", out.Errors[0].Message)
	}
	if out.ErrorMessage != "" {
		return nil, fmt.Errorf("board API error: %s", out.ErrorMessage)
	}

	raw, ok := out.Data[field]
	if !ok {
		return nil, fmt.Errorf("board response missing %s", field)
	}
	return raw, nil
}
