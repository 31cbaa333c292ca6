// Package notion reads the exhibitor-file tracking database: which pages
// carry downloadable lead files and when they were extracted.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/lead-refinery/internal/pkg/httpretry"
)

const (
	defaultBaseURL = "https://api.notion.com"
	apiVersion     = "2022-06-28"

	// Property names in the tracking database.
	propFiles       = "ファイル"
	propExtractedAt = "抽出日"
	propEmailState  = "メールアドレス（有無）"
)

// emailStates are the メールアドレス（有無） select values that mean a file is
// worth ingesting.
var emailStates = []string{
	"あり",
	"TELとURL",
	"社名・住所・URL",
	"Tel、住所、URL",
	"社名とURL（直で企業HPリンク）",
	"社名とURLのみ",
}

// Client talks to the Notion API with retries.
type Client struct {
	apiKey  string
	baseURL string
	http    httpretry.HTTPDoer
}

// NewClient builds a Notion client. A nil doer gets the default retrying
// HTTP client.
func NewClient(apiKey string, doer httpretry.HTTPDoer) *Client {
	if doer == nil {
		doer = httpretry.NewRetryClient(nil, 3)
	}
	return &Client{apiKey: apiKey, baseURL: defaultBaseURL, http: doer}
}

// WithBaseURL overrides the API endpoint, for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// File is one downloadable attachment on a page.
type File struct {
	Name     string
	URL      string
	External bool // external URL (e.g. a Google Sheet) rather than a Notion upload
}

// Item is one page of the tracking database.
type Item struct {
	ID    string
	Title string
	Files []File
}

// page mirrors the wire shape of a database query result.
type page struct {
	ID         string                     `json:"id"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type queryResponse struct {
	Results    []page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

type filesProperty struct {
	Type  string `json:"type"`
	Files []struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		File     struct{ URL string `json:"url"` } `json:"file"`
		External struct{ URL string `json:"url"` } `json:"external"`
	} `json:"files"`
}

type titleProperty struct {
	Title []struct {
		PlainText string `json:"plain_text"`
	} `json:"title"`
}

// QueryMonth returns every database item whose 抽出日 falls inside the month
// of ref, has at least one file, and whose email-availability state marks it
// ingestible. Pagination is followed to the end.
func (c *Client) QueryMonth(ctx context.Context, databaseID string, ref time.Time) ([]Item, error) {
	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	last := first.AddDate(0, 1, -1)

	var states []map[string]interface{}
	for _, s := range emailStates {
		states = append(states, map[string]interface{}{
			"property": propEmailState,
			"select":   map[string]interface{}{"equals": s},
		})
	}
	filter := map[string]interface{}{
		"and": []interface{}{
			map[string]interface{}{"or": states},
			map[string]interface{}{
				"property": propFiles,
				"files":    map[string]interface{}{"is_not_empty": true},
			},
			map[string]interface{}{
				"property": propExtractedAt,
				"date": map[string]interface{}{
					"on_or_after":  first.Format("2006-01-02"),
					"on_or_before": last.Format("2006-01-02"),
				},
			},
		},
	}

	var items []Item
	var cursor *string
	for {
		body := map[string]interface{}{"filter": filter}
		if cursor != nil {
			body["start_cursor"] = *cursor
		}
		resp, err := c.query(ctx, databaseID, body)
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Results {
			items = append(items, parseItem(p))
		}
		if !resp.HasMore || resp.NextCursor == nil {
			return items, nil
		}
		cursor = resp.NextCursor
	}
}

func (c *Client) query(ctx context.Context, databaseID string, body map[string]interface{}) (*queryResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding notion query: %w", err)
	}

	url := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building notion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying notion database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("notion query failed: status %d: %s", resp.StatusCode, data)
	}

	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding notion response: %w", err)
	}
	return &out, nil
}

func parseItem(p page) Item {
	item := Item{ID: p.ID, Title: "untitled"}

	for _, prop := range []string{"名前", "Name"} {
		raw, ok := p.Properties[prop]
		if !ok {
			continue
		}
		var tp titleProperty
		if err := json.Unmarshal(raw, &tp); err == nil && len(tp.Title) > 0 {
			item.Title = tp.Title[0].PlainText
			break
		}
	}

	if raw, ok := p.Properties[propFiles]; ok {
		var fp filesProperty
		if err := json.Unmarshal(raw, &fp); err == nil && fp.Type == "files" {
			for _, f := range fp.Files {
				switch f.Type {
				case "file":
					item.Files = append(item.Files, File{Name: f.Name, URL: f.File.URL})
				case "external":
					item.Files = append(item.Files, File{Name: f.Name, URL: f.External.URL, External: true})
				}
			}
		}
	}
	return item
}

// Download fetches the raw bytes of a file attachment URL.
func (c *Client) Download(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("downloading file: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
