package tools

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/errcode"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/mcp"
)

type findInput struct {
	Query       string   `json:"query"`
	EntityTypes []string `json:"entity_types,omitempty" jsonschema:"enum=mail,enum=files,enum=events"`
	StartDate   string   `json:"start_date,omitempty"`
	EndDate     string   `json:"end_date,omitempty"`
	Top         int      `json:"top,omitempty"`
	MaxChars    int      `json:"max_chars,omitempty"`
}

func (f *findInput) Validate() error {
	if strings.TrimSpace(f.Query) == "" {
		return errcode.New(errcode.Validation, "query is required")
	}
	for _, entity := range f.EntityTypes {
		switch entity {
		case "mail", "files", "events":
		default:
			return errcode.New(errcode.Validation, "entity_types entries must be mail, files, or events")
		}
	}
	if f.MaxChars > 50000 {
		return errcode.New(errcode.Validation, "max_chars must be at most 50000")
	}
	return nil
}

const findDesc = "Search across Microsoft 365 mail, files, and calendar events. " +
	"For calendar events: provide start_date and end_date (ISO 8601) to list all events in a date range " +
	"(includes organizer, attendees, location). Resolve relative dates like \"Monday\" or \"next week\" to concrete ISO dates before calling. " +
	"Without date params, falls back to text-based search. " +
	"Uses Copilot Retrieval API for files and Graph Search for mail."

// searchOutcome carries one fan-out branch's result; partial failures are
// reported alongside the surviving results.
type searchOutcome struct {
	provider string
	results  []map[string]interface{}
	err      error
}

func (s *Service) registerFind(registry *mcp.Registry) {
	mcp.RegisterTool[findInput](registry, "find", findDesc, func(ctx context.Context, in *findInput) *schema.CallToolResult {
		if err := s.requireLogin(ctx); err != nil {
			return mcp.FailErr(err)
		}
		query := strings.TrimSpace(in.Query)
		entityTypes := in.EntityTypes
		if len(entityTypes) == 0 {
			entityTypes = []string{"mail", "files", "events"}
		}
		startDate := strings.TrimSpace(in.StartDate)
		endDate := strings.TrimSpace(in.EndDate)
		top := s.normalizeTop(in.Top)
		started := s.now()

		var branches []func(ctx context.Context) searchOutcome
		if contains(entityTypes, "files") {
			branches = append(branches, func(ctx context.Context) searchOutcome {
				provider, results, err := s.searchFilesHybrid(ctx, query, top)
				return searchOutcome{provider: provider, results: results, err: err}
			})
		}
		if contains(entityTypes, "mail") {
			branches = append(branches, func(ctx context.Context) searchOutcome {
				results, err := s.searchMail(ctx, query, top)
				return searchOutcome{provider: "graph-search", results: results, err: err}
			})
		}
		if contains(entityTypes, "events") {
			if startDate != "" && endDate != "" {
				branches = append(branches, func(ctx context.Context) searchOutcome {
					results, err := s.listEventsRange(ctx, startDate, endDate, top)
					return searchOutcome{provider: "calendar-view", results: results, err: err}
				})
			} else {
				branches = append(branches, func(ctx context.Context) searchOutcome {
					results, err := s.searchEventsText(ctx, query, top)
					return searchOutcome{provider: "graph-search", results: results, err: err}
				})
			}
		}

		outcomes := make([]searchOutcome, len(branches))
		var wg sync.WaitGroup
		for i, branch := range branches {
			wg.Add(1)
			go func(i int, branch func(ctx context.Context) searchOutcome) {
				defer wg.Done()
				outcomes[i] = branch(ctx)
			}(i, branch)
		}
		wg.Wait()

		var allResults []map[string]interface{}
		var providers []string
		var errors []string
		for _, outcome := range outcomes {
			if outcome.err != nil {
				errors = append(errors, outcome.err.Error())
				continue
			}
			allResults = append(allResults, outcome.results...)
			if outcome.provider != "" && !contains(providers, outcome.provider) {
				providers = append(providers, outcome.provider)
			}
		}

		capped := allResults
		if len(capped) > top {
			capped = capped[:top]
		}
		summaryText := renderFindSummary(capped)
		summary, truncated := graph.CompactText(summaryText, s.maxChars(in.MaxChars), s.cfg.Output.HardMaxChars)

		structured := map[string]interface{}{
			"providers":    providers,
			"query":        query,
			"entity_types": entityTypes,
			"top":          top,
			"elapsed_ms":   s.now().Sub(started).Milliseconds(),
			"result_count": len(allResults),
			"summary":      summary,
			"truncated":    truncated,
			"results":      capped,
		}
		if startDate != "" {
			structured["start_date"] = startDate
		}
		if endDate != "" {
			structured["end_date"] = endDate
		}
		if contains(entityTypes, "events") {
			structured["timezone"] = s.cfg.Calendar.DefaultTimezone
		}
		if len(errors) > 0 {
			structured["errors"] = errors
		}
		return mcp.Ok(summary, structured)
	})
}

func renderFindSummary(results []map[string]interface{}) string {
	if len(results) == 0 {
		return "No results found."
	}
	var lines []string
	for i, result := range results {
		title := firstString(result, "subject", "title", "name")
		if title == "" {
			title = "Untitled"
		}
		line := "[" + strconv.Itoa(i+1) + "] " + title
		if url := firstString(result, "source_url", "web_url", "web_link"); url != "" {
			line += "\n   Link: " + url
		}
		if snippet := firstString(result, "snippet"); snippet != "" {
			line += "\n   " + truncate(snippet, 200)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, _ := m[key].(string); value != "" {
			return value
		}
	}
	return ""
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

// doSearchMail searches the mailbox and projects hits into find results.
func (s *Service) doSearchMail(ctx context.Context, query string, top int) ([]map[string]interface{}, error) {
	messages, err := s.mail.Search(ctx, query, top)
	if err != nil {
		return nil, err
	}
	results := make([]map[string]interface{}, 0, len(messages))
	for _, message := range messages {
		result := map[string]interface{}{
			"type":        "mail",
			"id":          message["id"],
			"subject":     message["subject"],
			"from":        message["from"],
			"received_at": message["receivedDateTime"],
		}
		if preview, _ := message["bodyPreview"].(string); preview != "" {
			result["snippet"] = truncate(preview, 200)
		}
		results = append(results, result)
	}
	return results, nil
}

// doSearchFilesHybrid prefers the Copilot Retrieval API and falls back to
// keyword file search when retrieval fails or returns nothing.
func (s *Service) doSearchFilesHybrid(ctx context.Context, query string, top int) (string, []map[string]interface{}, error) {
	retrieved, err := s.retrieval.Retrieve(ctx, graph.RetrievalOptions{QueryString: query, MaxResults: top})
	if err != nil {
		s.logger.Warn("Copilot Retrieval failed, falling back to keyword search", "error", err)
	} else if len(retrieved) > 0 {
		results := make([]map[string]interface{}, 0, len(retrieved))
		for _, hit := range retrieved {
			var snippets []string
			for _, extract := range hit.Extracts {
				snippets = append(snippets, extract.Text)
			}
			result := map[string]interface{}{
				"type":          "file",
				"title":         hit.Title,
				"source_url":    hit.WebURL,
				"author":        hit.Author,
				"resource_type": hit.ResourceType,
				"snippet":       strings.Join(snippets, " "),
			}
			if hit.SensitivityLabel != "" {
				result["sensitivity_label"] = hit.SensitivityLabel
			}
			results = append(results, result)
		}
		return "copilot-retrieval", results, nil
	}
	files, err := s.files.Search(ctx, query, top, graph.FileSearchBoth, false)
	if err != nil {
		return "", nil, err
	}
	results := make([]map[string]interface{}, 0, len(files))
	for _, file := range files {
		file["type"] = "file"
		results = append(results, file)
	}
	return "graph-search", results, nil
}

// doSearchEventsText is the text-based event search used when no date range
// is given.
func (s *Service) doSearchEventsText(ctx context.Context, query string, top int) ([]map[string]interface{}, error) {
	hits, err := s.client.SearchQuery(ctx, []string{"event"}, query, top, nil)
	if err != nil {
		return nil, err
	}
	results := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		resource := hit.Resource
		if resource == nil {
			resource = map[string]interface{}{}
		}
		id := hit.HitID
		if id == "" {
			id, _ = resource["id"].(string)
		}
		results = append(results, map[string]interface{}{
			"type":      "event",
			"id":        id,
			"subject":   resource["subject"],
			"start":     resource["start"],
			"end":       resource["end"],
			"organizer": resource["organizer"],
			"snippet":   hit.Summary,
		})
	}
	return results, nil
}

// doListEventsRange expands the calendar view over a date range.
func (s *Service) doListEventsRange(ctx context.Context, start, end string, top int) ([]map[string]interface{}, error) {
	events, err := s.calendar.View(ctx, start, end, top, "")
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		event["type"] = "event"
	}
	return events, nil
}
