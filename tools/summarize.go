package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/errcode"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/mcp"
)

const maxDirectDownloadBytes = 2 * 1024 * 1024

type summarizeInput struct {
	Query    string `json:"query,omitempty"`
	DriveID  string `json:"drive_id,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
	Focus    string `json:"focus,omitempty"`
	MaxChars int    `json:"max_chars,omitempty"`
}

func (s *summarizeInput) Validate() error {
	if s.DriveID != "" && s.ItemID != "" {
		return nil
	}
	if strings.TrimSpace(s.Query) != "" {
		return nil
	}
	return errcode.New(errcode.Validation, "provide query OR both drive_id and item_id")
}

const summarizeDesc = "Gather document content for summarization. Give a query to pull relevant " +
	"passages via Copilot Retrieval, or drive_id + item_id to read one specific document. " +
	"Optional focus narrows the retrieval query."

func (s *Service) registerSummarize(registry *mcp.Registry) {
	mcp.RegisterTool[summarizeInput](registry, "summarize", summarizeDesc, func(ctx context.Context, in *summarizeInput) *schema.CallToolResult {
		if err := s.requireLogin(ctx); err != nil {
			return mcp.FailErr(err)
		}
		var (
			provider  string
			reference string
			content   string
			citations []graph.Citation
		)
		if in.DriveID != "" && in.ItemID != "" {
			item, err := s.files.GetItem(ctx, in.DriveID, in.ItemID)
			if err != nil {
				return mcp.FailErr(err)
			}
			name, _ := item["name"].(string)
			webURL, _ := item["webUrl"].(string)
			provider = "graph-download"
			reference = name
			if reference == "" {
				reference = in.ItemID
			}
			citations = append(citations, graph.Citation{Title: name, URL: webURL})
			text, err := s.files.DownloadText(ctx, in.DriveID, in.ItemID, maxDirectDownloadBytes)
			if err != nil || text == "" {
				// Binary or oversized documents still get metadata context.
				content = "Document content is not plain text; use the web link to view: " + webURL
			} else {
				content = text
			}
		} else {
			query := strings.TrimSpace(in.Query)
			retrievalQuery := query
			if focus := strings.TrimSpace(in.Focus); focus != "" {
				retrievalQuery = query + " " + focus
			}
			results, err := s.retrieval.Retrieve(ctx, graph.RetrievalOptions{QueryString: retrievalQuery, MaxResults: 5})
			if err == nil && len(results) > 0 {
				provider = "copilot-retrieval"
				reference = query
				content, citations = graph.FormatResults(results)
			} else {
				if err != nil {
					s.logger.Warn("retrieval unavailable for summarize, using keyword search", "error", err)
				}
				provider = "graph-search"
				reference = query
				files, searchErr := s.files.Search(ctx, query, 3, graph.FileSearchBoth, false)
				if searchErr != nil {
					return mcp.FailErr(searchErr)
				}
				if len(files) == 0 {
					content = "No documents found matching: " + query
				} else {
					var lines []string
					for _, file := range files {
						name, _ := file["name"].(string)
						snippet, _ := file["snippet"].(string)
						lines = append(lines, name+": "+snippet)
						webURL, _ := file["web_url"].(string)
						citations = append(citations, graph.Citation{Title: name, URL: webURL})
					}
					content = strings.Join(lines, "\n")
				}
			}
		}

		header := "Content from: " + reference + "\n"
		if focus := strings.TrimSpace(in.Focus); focus != "" {
			header += "[Focus: " + focus + "]\n"
		}
		summary, truncated := graph.CompactText(header+"\n"+content, s.maxChars(in.MaxChars), s.cfg.Output.HardMaxChars)
		if len(citations) > 30 {
			citations = citations[:30]
		}
		structured := map[string]interface{}{
			"provider":  provider,
			"document":  reference,
			"summary":   summary,
			"truncated": truncated,
			"citations": citations,
		}
		if focus := strings.TrimSpace(in.Focus); focus != "" {
			structured["focus"] = focus
		}
		return mcp.Ok(fmt.Sprintf("Summary for: %q", reference), structured)
	})
}
