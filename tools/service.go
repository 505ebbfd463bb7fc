// Package tools implements the gateway's callable surface: search, read,
// compose, scheduling, briefing, and administrative tools over the Graph
// services, wrapped in guardrails and audit logging.
package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/graphgate/graphgate/audit"
	"github.com/graphgate/graphgate/auth"
	"github.com/graphgate/graphgate/config"
	"github.com/graphgate/graphgate/errcode"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/guard"
	"github.com/graphgate/graphgate/mcp"
)

// Service owns every tool's dependencies. The search func fields default to
// the Graph-backed implementations and are swapped in tests.
type Service struct {
	cfg       *config.Config
	session   *auth.Session
	client    *graph.Client
	mail      *graph.MailService
	calendar  *graph.CalendarService
	files     *graph.FilesService
	retrieval *graph.RetrievalService
	events    *graph.EventsService
	guard     *guard.Engine
	audit     *audit.Logger
	logger    *slog.Logger

	searchMail        func(ctx context.Context, query string, top int) ([]map[string]interface{}, error)
	searchFilesHybrid func(ctx context.Context, query string, top int) (string, []map[string]interface{}, error)
	searchEventsText  func(ctx context.Context, query string, top int) ([]map[string]interface{}, error)
	listEventsRange   func(ctx context.Context, start, end string, top int) ([]map[string]interface{}, error)
	freeBusy          func(ctx context.Context, schedules []string, start, end time.Time) ([]graph.ScheduleInfo, error)
	createEvent       func(ctx context.Context, spec graph.EventSpec) (map[string]interface{}, error)
	now               func() time.Time
}

func NewService(cfg *config.Config, session *auth.Session, client *graph.Client, guardEngine *guard.Engine, auditLog *audit.Logger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		cfg:       cfg,
		session:   session,
		client:    client,
		mail:      graph.NewMailService(client, cfg.Output.DefaultMaxChars, cfg.Output.HardMaxChars),
		calendar:  graph.NewCalendarService(client, cfg.Calendar.DefaultTimezone),
		files:     graph.NewFilesService(client),
		retrieval: graph.NewRetrievalService(client, *cfg.Retrieval.Enabled, cfg.Retrieval.DataSource),
		events:    graph.NewEventsService(session),
		guard:     guardEngine,
		audit:     auditLog,
		logger:    logger,
		now:       time.Now,
	}
	s.searchMail = s.doSearchMail
	s.searchFilesHybrid = s.doSearchFilesHybrid
	s.searchEventsText = s.doSearchEventsText
	s.listEventsRange = s.doListEventsRange
	s.freeBusy = s.doFreeBusy
	s.createEvent = s.events.Create
	return s
}

// Register adds every gateway tool to the registry.
func (s *Service) Register(registry *mcp.Registry) {
	s.registerAuth(registry)
	s.registerFind(registry)
	s.registerGet(registry)
	s.registerCompose(registry)
	s.registerSchedule(registry)
	s.registerRespond(registry)
	s.registerSummarize(registry)
	s.registerPrepare(registry)
	s.registerAudit(registry)
}

func (s *Service) requireLogin(ctx context.Context) error {
	if !s.session.LoggedIn(ctx) {
		return errcode.New(errcode.AuthRequired, "not logged in")
	}
	return nil
}

func (s *Service) currentUser(ctx context.Context) string {
	if user := s.session.CurrentUser(ctx); user != "" {
		return user
	}
	return "unknown"
}

func (s *Service) auditLog(entry audit.Entry) {
	if err := s.audit.Log(entry); err != nil {
		s.logger.Warn("audit write failed", "action", entry.Action, "error", err)
	}
}
