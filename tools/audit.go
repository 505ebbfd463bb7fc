package tools

import (
	"context"
	"fmt"

	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/mcp"
)

type auditListInput struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Service) registerAudit(registry *mcp.Registry) {
	mcp.RegisterTool[auditListInput](registry, "audit_list",
		"List recent audit log entries for write actions (newest last).",
		func(ctx context.Context, in *auditListInput) *schema.CallToolResult {
			limit := in.Limit
			if limit <= 0 {
				limit = 100
			}
			if limit > 1000 {
				limit = 1000
			}
			entries, err := s.audit.List(limit)
			if err != nil {
				return mcp.FailErr(err)
			}
			return mcp.Ok(fmt.Sprintf("Retrieved %d audit entries.", len(entries)), map[string]interface{}{
				"count": len(entries),
				"items": entries,
			})
		})
}
