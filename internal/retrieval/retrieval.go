// Package retrieval queries a managed document search index and turns its
// extractive answers into the grounding text for a chat turn.
//
// Retrieval never fails a chat turn: every transport, service, or credential
// failure is logged and reported to the caller as a fixed sentinel answer.
package retrieval

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/cliolabs/clio/internal/log"
)

// Sentinel answers returned in place of retrieved content. Downstream
// prompts embed these verbatim, so the wording is fixed.
const (
	// NoInformation is returned when the index has nothing for the query.
	NoInformation = "No relevant information found in the documents."
	// AnswerError is returned on any retrieval failure.
	AnswerError = "Error retrieving document-based answers."
)

// ErrAuthConfiguration indicates the search credential source is absent or
// unusable. Returned by New only; Answer never returns errors.
var ErrAuthConfiguration = errors.New("retrieval: search credentials not configured")

const (
	defaultPageSize = 10
	requestTimeout  = 30 * time.Second
	scopeCloud      = "https://www.googleapis.com/auth/cloud-platform"
)

// Config holds the search endpoint and credential source.
type Config struct {
	// Endpoint is the full serving-config search URL.
	Endpoint string
	// Session is the search session resource name, if any.
	Session string
	// CredentialsBase64 is a base64-encoded service account key JSON.
	// Takes precedence over CredentialsFile.
	CredentialsBase64 string
	// CredentialsFile is a path to a service account key JSON file.
	CredentialsFile string
	// PageSize caps the result count per query. Default 10.
	PageSize int
}

// Client performs grounded-answer lookups against the search index.
type Client struct {
	endpoint string
	session  string
	pageSize int
	tokens   oauth2.TokenSource
	client   *http.Client
	logger   log.Logger
}

// New creates a Client from cfg. It fails with ErrAuthConfiguration when no
// usable credential source is configured; the credential itself is not
// exercised until the first query.
func New(ctx context.Context, cfg Config, logger log.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("retrieval: endpoint is required")
	}

	keyJSON, err := credentialJSON(cfg)
	if err != nil {
		return nil, err
	}

	creds, err := google.CredentialsFromJSON(ctx, keyJSON, scopeCloud)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthConfiguration, err)
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		endpoint: cfg.Endpoint,
		session:  cfg.Session,
		pageSize: pageSize,
		tokens:   creds.TokenSource,
		client:   &http.Client{Timeout: requestTimeout},
		logger:   logger,
	}, nil
}

func credentialJSON(cfg Config) ([]byte, error) {
	if cfg.CredentialsBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(cfg.CredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding base64 credentials: %w", ErrAuthConfiguration, err)
		}
		return decoded, nil
	}
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("%w: reading credentials file: %w", ErrAuthConfiguration, err)
		}
		return data, nil
	}
	return nil, ErrAuthConfiguration
}

type searchRequest struct {
	Query               string              `json:"query"`
	PageSize            int                 `json:"pageSize"`
	QueryExpansionSpec  queryExpansionSpec  `json:"queryExpansionSpec"`
	SpellCorrectionSpec spellCorrectionSpec `json:"spellCorrectionSpec"`
	ContentSearchSpec   contentSearchSpec   `json:"contentSearchSpec"`
	Session             string              `json:"session,omitempty"`
}

type queryExpansionSpec struct {
	Condition string `json:"condition"`
}

type spellCorrectionSpec struct {
	Mode string `json:"mode"`
}

type contentSearchSpec struct {
	ExtractiveContentSpec extractiveContentSpec `json:"extractiveContentSpec"`
}

type extractiveContentSpec struct {
	MaxExtractiveAnswerCount int `json:"maxExtractiveAnswerCount"`
}

type searchResponse struct {
	Results []struct {
		Document struct {
			DerivedStructData struct {
				ExtractiveAnswers []struct {
					// pageNumber arrives as a JSON string but has been
					// observed as a number on some index versions.
					PageNumber any    `json:"pageNumber"`
					Content    string `json:"content"`
				} `json:"extractive_answers"`
			} `json:"derivedStructData"`
		} `json:"document"`
	} `json:"results"`
}

// Answer queries the index and returns the extractive answers flattened to
// "Page <n>: <content>" lines in result order. It returns NoInformation for
// an empty result set and AnswerError for any failure.
func (c *Client) Answer(ctx context.Context, query string) string {
	payload := searchRequest{
		Query:               query,
		PageSize:            c.pageSize,
		QueryExpansionSpec:  queryExpansionSpec{Condition: "AUTO"},
		SpellCorrectionSpec: spellCorrectionSpec{Mode: "AUTO"},
		ContentSearchSpec: contentSearchSpec{
			ExtractiveContentSpec: extractiveContentSpec{MaxExtractiveAnswerCount: 1},
		},
		Session: c.session,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("encoding search request", "error", err)
		return AnswerError
	}

	token, err := c.tokens.Token()
	if err != nil {
		c.logger.Error("fetching search access token", "error", err)
		return AnswerError
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("building search request", "error", err)
		return AnswerError
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("querying search index", "error", err)
		return AnswerError
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("search index returned error",
			"status", resp.StatusCode,
			"body", string(snippet),
		)
		return AnswerError
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Error("decoding search response", "error", err)
		return AnswerError
	}

	return flattenAnswers(result)
}

func flattenAnswers(result searchResponse) string {
	var lines []string
	for _, r := range result.Results {
		for _, a := range r.Document.DerivedStructData.ExtractiveAnswers {
			lines = append(lines, fmt.Sprintf("Page %v: %s", a.PageNumber, a.Content))
		}
	}
	if len(lines) == 0 {
		return NoInformation
	}
	return strings.Join(lines, "\n")
}
