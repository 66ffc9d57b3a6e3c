package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cavaliercoder/grab"

	"archivist/internal/config"
	"archivist/internal/logging"
)

// searchFields are requested explicitly so titles are always present in the
// response documents.
var searchFields = []string{
	"identifier", "title", "description", "mediatype",
	"collection", "date", "creator", "downloads",
}

// Client talks to the content archive's search, metadata, and download
// endpoints.
type Client struct {
	searchURL   string
	metadataURL string
	downloadURL string
	httpClient  *http.Client
	grabClient  *grab.Client
	logger      *slog.Logger
}

// NewClient builds a client from the remote endpoint configuration. The
// metadata client enforces the configured request timeout; downloads run
// without one so large transfers are not cut short.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		searchURL:   cfg.Remote.SearchURL,
		metadataURL: cfg.Remote.MetadataURL,
		downloadURL: cfg.Remote.DownloadURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Remote.RequestTimeout) * time.Second,
		},
		grabClient: grab.NewClient(),
		logger:     logging.NewComponentLogger(logger, "archive-client"),
	}
}

type searchDocument struct {
	Identifier  string      `json:"identifier"`
	Title       flexString  `json:"title"`
	Description flexString  `json:"description"`
	MediaType   flexString  `json:"mediatype"`
	Collection  flexStrings `json:"collection"`
	Date        flexString  `json:"date"`
	Creator     flexString  `json:"creator"`
	Downloads   flexInt64   `json:"downloads"`
}

type searchResponse struct {
	Response struct {
		NumFound int64            `json:"numFound"`
		Docs     []searchDocument `json:"docs"`
	} `json:"response"`
}

// Search queries the archive and returns one page of results.
func (c *Client) Search(ctx context.Context, query string, page, rows int, sort string) (*SearchPage, error) {
	if page < 1 {
		page = 1
	}
	if rows < 1 {
		rows = 20
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("output", "json")
	params.Set("rows", strconv.Itoa(rows))
	params.Set("page", strconv.Itoa(page))
	for _, field := range searchFields {
		params.Add("fl[]", field)
	}
	if sort != "" {
		params.Add("sort[]", sort)
	}

	var decoded searchResponse
	if err := c.getJSON(ctx, c.searchURL+"?"+params.Encode(), &decoded); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := make([]SearchResult, 0, len(decoded.Response.Docs))
	for _, doc := range decoded.Response.Docs {
		if doc.Identifier == "" {
			continue
		}
		var downloads int64
		if ptr := doc.Downloads.pointer(); ptr != nil {
			downloads = *ptr
		}
		results = append(results, SearchResult{
			Identifier:  doc.Identifier,
			Title:       string(doc.Title),
			Description: string(doc.Description),
			MediaType:   string(doc.MediaType),
			Collection:  []string(doc.Collection),
			Date:        string(doc.Date),
			Creator:     string(doc.Creator),
			Downloads:   downloads,
		})
	}
	c.logger.Debug("search completed",
		logging.String("query", query),
		logging.Int("results", len(results)),
		logging.Int64("total", decoded.Response.NumFound))
	return &SearchPage{
		Results: results,
		Total:   decoded.Response.NumFound,
		Page:    page,
		Rows:    rows,
	}, nil
}

type metadataFile struct {
	Name   string     `json:"name"`
	Size   flexInt64  `json:"size"`
	Format flexString `json:"format"`
	MD5    flexString `json:"md5"`
	Mtime  flexString `json:"mtime"`
	Source flexString `json:"source"`
}

type metadataResponse struct {
	Metadata map[string]any `json:"metadata"`
	Files    []metadataFile `json:"files"`
}

// Item fetches the metadata record for one identifier.
func (c *Client) Item(ctx context.Context, identifier string) (*Item, error) {
	var decoded metadataResponse
	endpoint := c.metadataURL + "/" + url.PathEscape(identifier)
	if err := c.getJSON(ctx, endpoint, &decoded); err != nil {
		return nil, fmt.Errorf("item %q: %w", identifier, err)
	}
	if len(decoded.Metadata) == 0 && len(decoded.Files) == 0 {
		return nil, fmt.Errorf("item %q: not found", identifier)
	}

	files := make([]ItemFile, 0, len(decoded.Files))
	for _, f := range decoded.Files {
		if f.Name == "" {
			continue
		}
		files = append(files, ItemFile{
			Name:   f.Name,
			Size:   f.Size.pointer(),
			Format: string(f.Format),
			MD5:    string(f.MD5),
			Mtime:  string(f.Mtime),
			Source: string(f.Source),
		})
	}
	return &Item{
		Identifier: identifier,
		Metadata:   decoded.Metadata,
		Files:      files,
	}, nil
}

// FileURL builds the download endpoint for one file within an item. File
// names may contain slashes; each segment is escaped separately.
func (c *Client) FileURL(identifier, name string) string {
	var builder strings.Builder
	builder.WriteString(c.downloadURL)
	builder.WriteString("/")
	builder.WriteString(url.PathEscape(identifier))
	for _, segment := range strings.Split(name, "/") {
		if segment == "" {
			continue
		}
		builder.WriteString("/")
		builder.WriteString(url.PathEscape(segment))
	}
	return builder.String()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
