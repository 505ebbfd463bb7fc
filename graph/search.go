package graph

import "context"

// SearchHit is one hit from the Microsoft Search API.
type SearchHit struct {
	HitID    string                 `json:"hitId"`
	Summary  string                 `json:"summary"`
	Resource map[string]interface{} `json:"resource"`
}

type searchQueryResponse struct {
	Value []struct {
		HitsContainers []struct {
			Hits []SearchHit `json:"hits"`
		} `json:"hitsContainers"`
	} `json:"value"`
}

// SearchQuery runs one request against /search/query for the given entity
// types. fields may be nil to take the API defaults.
func (c *Client) SearchQuery(ctx context.Context, entityTypes []string, query string, size int, fields []string) ([]SearchHit, error) {
	request := map[string]interface{}{
		"entityTypes": entityTypes,
		"query":       map[string]interface{}{"queryString": query},
		"from":        0,
		"size":        size,
	}
	if len(fields) > 0 {
		request["fields"] = fields
	}
	body := map[string]interface{}{"requests": []map[string]interface{}{request}}
	out := &searchQueryResponse{}
	if err := c.post(ctx, "/search/query", body, out); err != nil {
		return nil, err
	}
	if len(out.Value) == 0 || len(out.Value[0].HitsContainers) == 0 {
		return nil, nil
	}
	return out.Value[0].HitsContainers[0].Hits, nil
}
