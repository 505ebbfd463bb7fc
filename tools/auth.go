package tools

import (
	"context"
	"fmt"

	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/auth"
	"github.com/graphgate/graphgate/errcode"
	"github.com/graphgate/graphgate/mcp"
)

type authInput struct {
	Action string `json:"action" jsonschema:"enum=login,enum=login_device,enum=logout,enum=whoami"`
}

func (a *authInput) Validate() error {
	switch a.Action {
	case "login", "login_device", "logout", "whoami":
		return nil
	}
	return errcode.New(errcode.Validation, "action is required: login, login_device, logout, or whoami")
}

const authDesc = "Authenticate with Microsoft Graph. Actions: login (interactive browser), " +
	"login_device (device code for headless), logout, whoami."

func (s *Service) registerAuth(registry *mcp.Registry) {
	mcp.RegisterTool[authInput](registry, "auth", authDesc, func(ctx context.Context, in *authInput) *schema.CallToolResult {
		switch in.Action {
		case "login", "login_device":
			mode := auth.ModeInteractive
			modeName := "interactive"
			if in.Action == "login_device" {
				mode = auth.ModeDeviceCode
				modeName = "device"
			}
			cred, err := s.session.Login(ctx, mode)
			if err != nil {
				return mcp.FailErr(err)
			}
			return mcp.Ok(fmt.Sprintf("Login successful (%s).", modeName), map[string]interface{}{
				"success": true,
				"mode":    modeName,
				"user":    cred.Account,
			})
		case "logout":
			if err := s.session.Logout(ctx); err != nil {
				return mcp.FailErr(err)
			}
			return mcp.Ok("Logged out.", map[string]interface{}{"success": true})
		default: // whoami
			if err := s.requireLogin(ctx); err != nil {
				return mcp.FailErr(err)
			}
			profile, err := s.client.Me(ctx)
			if err != nil {
				return mcp.FailErr(err)
			}
			return mcp.Ok("User profile retrieved.", map[string]interface{}{
				"id":                  profile["id"],
				"display_name":        profile["displayName"],
				"mail":                profile["mail"],
				"user_principal_name": profile["userPrincipalName"],
			})
		}
	})
}
