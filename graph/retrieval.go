package graph

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/graphgate/graphgate/errcode"
)

// RetrievalExtract is one relevance-scored passage from a document.
type RetrievalExtract struct {
	Text           string  `json:"text"`
	RelevanceScore float64 `json:"relevanceScore"`
}

// RetrievalResult is a normalized hit from the Copilot Retrieval API.
type RetrievalResult struct {
	WebURL           string             `json:"webUrl"`
	Title            string             `json:"title"`
	Author           string             `json:"author"`
	Extracts         []RetrievalExtract `json:"extracts"`
	ResourceType     string             `json:"resourceType"`
	SensitivityLabel string             `json:"sensitivityLabel,omitempty"`
}

// RetrievalOptions shape one retrieval query. Zero values fall back to the
// service defaults.
type RetrievalOptions struct {
	QueryString      string
	DataSource       string
	FilterExpression string
	MaxResults       int
	ResourceMetadata []string
}

type RetrievalService struct {
	client            *Client
	enabled           bool
	defaultDataSource string
}

func NewRetrievalService(client *Client, enabled bool, defaultDataSource string) *RetrievalService {
	return &RetrievalService{client: client, enabled: enabled, defaultDataSource: defaultDataSource}
}

func (s *RetrievalService) Enabled() bool { return s.enabled }

type retrievalWireHit struct {
	WebURL           string             `json:"webUrl"`
	Extracts         []RetrievalExtract `json:"extracts"`
	ResourceType     string             `json:"resourceType"`
	ResourceMetadata map[string]string  `json:"resourceMetadata"`
	SensitivityLabel *struct {
		DisplayName string `json:"displayName"`
	} `json:"sensitivityLabel"`
}

// Retrieve queries the Copilot Retrieval API for semantically ranked
// passages across SharePoint and OneDrive content.
func (s *RetrievalService) Retrieve(ctx context.Context, options RetrievalOptions) ([]RetrievalResult, error) {
	if !s.enabled {
		return nil, errcode.New(errcode.RetrievalDisabled, "Copilot Retrieval API is disabled in configuration")
	}
	maxResults := options.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	dataSource := options.DataSource
	if dataSource == "" {
		dataSource = s.defaultDataSource
	}
	metadata := options.ResourceMetadata
	if len(metadata) == 0 {
		metadata = []string{"title", "author"}
	}
	body := map[string]interface{}{
		"queryString":            options.QueryString,
		"dataSource":             dataSource,
		"resourceMetadata":       metadata,
		"maximumNumberOfResults": strconv.Itoa(maxResults),
	}
	if options.FilterExpression != "" {
		body["filterExpression"] = options.FilterExpression
	}
	out := &struct {
		RetrievalHits []retrievalWireHit `json:"retrievalHits"`
	}{}
	if err := s.client.post(ctx, "/copilot/retrieval", body, out); err != nil {
		var coded *errcode.Error
		if errors.As(err, &coded) && coded.Code == errcode.Upstream {
			return nil, errcode.New(errcode.RetrievalError, "Copilot Retrieval API failed: %s", coded.Message)
		}
		return nil, err
	}
	hits := out.RetrievalHits
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	results := make([]RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		result := RetrievalResult{
			WebURL:       hit.WebURL,
			Title:        resolveTitle(hit.ResourceMetadata["title"], hit.WebURL),
			Author:       hit.ResourceMetadata["author"],
			ResourceType: hit.ResourceType,
		}
		if hit.SensitivityLabel != nil {
			result.SensitivityLabel = hit.SensitivityLabel.DisplayName
		}
		for _, extract := range hit.Extracts {
			result.Extracts = append(result.Extracts, RetrievalExtract{
				Text:           cleanExtract(extract.Text),
				RelevanceScore: extract.RelevanceScore,
			})
		}
		results = append(results, result)
	}
	return results, nil
}

// Citation is the source reference surfaced alongside formatted text.
type Citation struct {
	Title  string `json:"title,omitempty"`
	URL    string `json:"url,omitempty"`
	Author string `json:"author,omitempty"`
}

// FormatResults renders retrieval hits as numbered, cited plain text.
func FormatResults(results []RetrievalResult) (string, []Citation) {
	if len(results) == 0 {
		return "No results found.", nil
	}
	var lines []string
	citations := make([]Citation, 0, len(results))
	for i, result := range results {
		title := result.Title
		if title == "" {
			title = "Untitled"
		}
		lines = append(lines, fmt.Sprintf("[%d] %s", i+1, title))
		for _, extract := range result.Extracts {
			lines = append(lines, "    "+extract.Text)
		}
		if result.WebURL != "" {
			lines = append(lines, "    Source: "+result.WebURL)
		}
		lines = append(lines, "")
		citations = append(citations, Citation{Title: result.Title, URL: result.WebURL, Author: result.Author})
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), citations
}

func filenameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	path, err := url.PathUnescape(parsed.Path)
	if err != nil {
		path = parsed.Path
	}
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// Office documents sometimes report template or style names as their title;
// the filename from the URL is a better fallback.
var suspiciousTitle = regexp.MustCompile(`(?i)^(efficient elements|default|template|style)`)

func resolveTitle(metadataTitle, webURL string) string {
	trimmed := strings.TrimSpace(metadataTitle)
	if trimmed == "" || suspiciousTitle.MatchString(trimmed) {
		if filename := filenameFromURL(webURL); filename != "" {
			return filename
		}
		if trimmed != "" {
			return metadataTitle
		}
		return "Untitled"
	}
	return metadataTitle
}

var (
	slideMarkerPattern   = regexp.MustCompile(`(?i)</?(slide_\d+|u|span|br)\b[^>]*>`)
	strikePattern        = regexp.MustCompile(`~~([^~]*)~~`)
	boldPattern          = regexp.MustCompile(`\*\*([^*]*)\*\*`)
	imagePlaceholder     = regexp.MustCompile(`\[image_[^\]]*\]`)
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\[[^\]]*\]`)
	spaceRunPattern      = regexp.MustCompile(`\s{2,}`)
)

// cleanExtract strips HTML leftovers, markdown emphasis, and slide markers
// from extract text.
func cleanExtract(text string) string {
	out := StripHTML(text)
	out = slideMarkerPattern.ReplaceAllString(out, "")
	out = strikePattern.ReplaceAllString(out, "$1")
	out = boldPattern.ReplaceAllString(out, "$1")
	out = imagePlaceholder.ReplaceAllString(out, "")
	out = markdownImagePattern.ReplaceAllString(out, "")
	out = spaceRunPattern.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
