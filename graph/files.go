package graph

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"
)

// FileSearchMode narrows keyword file search to filename or content matches.
type FileSearchMode string

const (
	FileSearchName    FileSearchMode = "name"
	FileSearchContent FileSearchMode = "content"
	FileSearchBoth    FileSearchMode = "both"
)

var fileSearchFields = []string{
	"id", "name", "webUrl", "lastModifiedDateTime", "size", "file",
	"parentReference", "createdBy", "lastModifiedBy",
}

type FilesService struct {
	client *Client
}

func NewFilesService(client *Client) *FilesService {
	return &FilesService{client: client}
}

// PickFile projects a raw driveItem to the gateway's compact shape.
func PickFile(item map[string]interface{}, includeFull bool) map[string]interface{} {
	minimal := map[string]interface{}{
		"id":          item["id"],
		"drive_id":    nested(item, "parentReference", "driveId"),
		"name":        item["name"],
		"path":        nested(item, "parentReference", "path"),
		"modified_at": item["lastModifiedDateTime"],
		"size":        item["size"],
		"web_url":     item["webUrl"],
	}
	if !includeFull {
		return minimal
	}
	minimal["file"] = item["file"]
	minimal["created_by"] = item["createdBy"]
	minimal["modified_by"] = item["lastModifiedBy"]
	minimal["parent_reference"] = item["parentReference"]
	return minimal
}

// Search runs the Microsoft Search API over drive items, post-filters by
// mode, and returns hits newest first with their summary snippets.
func (s *FilesService) Search(ctx context.Context, query string, top int, mode FileSearchMode, includeFull bool) ([]map[string]interface{}, error) {
	hits, err := s.client.SearchQuery(ctx, []string{"driveItem"}, query, top, fileSearchFields)
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(query)
	var mapped []map[string]interface{}
	for _, hit := range hits {
		if hit.Resource == nil {
			continue
		}
		summary := strings.TrimSpace(hit.Summary)
		file := PickFile(hit.Resource, includeFull)
		name := strings.ToLower(str(file["name"]))
		inName := strings.Contains(name, lowered)
		inContent := strings.Contains(strings.ToLower(summary), lowered)
		if mode == FileSearchName && !inName {
			continue
		}
		if mode == FileSearchContent && !inContent {
			continue
		}
		file["snippet"] = summary
		mapped = append(mapped, file)
	}
	sort.SliceStable(mapped, func(i, j int) bool {
		return str(mapped[i]["modified_at"]) > str(mapped[j]["modified_at"])
	})
	if len(mapped) > top {
		mapped = mapped[:top]
	}
	return mapped, nil
}

// GetItem fetches a drive item's descriptive metadata.
func (s *FilesService) GetItem(ctx context.Context, driveID, itemID string) (map[string]interface{}, error) {
	values := url.Values{}
	values.Set("$select", "id,name,webUrl,parentReference")
	out := map[string]interface{}{}
	path := "/drives/" + pathEscape(driveID) + "/items/" + pathEscape(itemID)
	if err := s.client.get(ctx, path, values, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DownloadText fetches a drive item's content when it is valid UTF-8 text,
// returning "" for binary documents.
func (s *FilesService) DownloadText(ctx context.Context, driveID, itemID string, limit int64) (string, error) {
	path := "/drives/" + pathEscape(driveID) + "/items/" + pathEscape(itemID) + "/content"
	raw, _, err := s.client.getRaw(ctx, path, limit)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", nil
	}
	return string(raw), nil
}
