package users

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jetwayz/admin-console/internal/directory"
	"github.com/jetwayz/admin-console/internal/shared"
)

// IntentKind enumerates what a directory request asks for.
type IntentKind int

const (
	IntentRefresh IntentKind = iota
	IntentReset
	IntentPageSize
	IntentPage
	IntentGlobalSearch
	IntentLocalFilter
)

// Intent is a directory action decoded from a query string.
type Intent struct {
	Kind      IntentKind
	Term      string
	PageIndex int
	PageSize  int
}

// ParseIntent decodes q. Page numbers are 1-based in URLs. Precedence is
// reset, size, page, then search; anything else refreshes the current mode.
func ParseIntent(q url.Values) Intent {
	if q.Get("reset") == "1" {
		return Intent{Kind: IntentReset}
	}
	if size, ok := shared.ParsePageSize(q, "size"); ok {
		return Intent{Kind: IntentPageSize, PageSize: size}
	}
	if index, ok := shared.ParsePageNumber(q, "page"); ok {
		return Intent{Kind: IntentPage, PageIndex: index}
	}
	if q.Has("q") {
		term := strings.TrimSpace(q.Get("q"))
		if strings.EqualFold(q.Get("scope"), "local") {
			return Intent{Kind: IntentLocalFilter, Term: term}
		}
		return Intent{Kind: IntentGlobalSearch, Term: term}
	}
	return Intent{Kind: IntentRefresh}
}

// Service builds per-request directory controllers for signed-in operators.
type Service struct {
	backend  Backend
	logger   *slog.Logger
	role     string
	pageSize int
}

// NewService constructs a Service. role is sent to the paginated listing.
func NewService(backend Backend, logger *slog.Logger, role string, pageSize int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, logger: logger, role: role, pageSize: pageSize}
}

// Open builds a controller for p and restores the snapshot kept in sess. The
// flag reports whether a snapshot was found.
func (s *Service) Open(ctx context.Context, sess *shared.Session, p shared.Principal, notifier directory.Notifier) (*directory.Controller, bool) {
	ctrl := directory.NewController(directory.Config{
		Service:  s.backend.ForOperator(p),
		Notifier: notifier,
		Logger:   s.logger,
		Role:     s.role,
		PageSize: s.pageSize,
	})
	if sess == nil {
		return ctrl, false
	}
	var st directory.State
	found, err := sess.GetJSON(stateKey, &st)
	if err != nil {
		s.logger.WarnContext(ctx, "discard directory snapshot", slog.Any("error", err))
		sess.Delete(stateKey)
		return ctrl, false
	}
	if found {
		ctrl.Restore(st)
	}
	return ctrl, found
}

// Save stores the controller snapshot in sess.
func (s *Service) Save(ctx context.Context, sess *shared.Session, ctrl *directory.Controller) {
	if sess == nil {
		return
	}
	if err := sess.SetJSON(stateKey, ctrl.State()); err != nil {
		s.logger.WarnContext(ctx, "store directory snapshot", slog.Any("error", err))
	}
}

// Apply runs in against ctrl. restored says whether ctrl already holds a page;
// intents that act on the loaded page fetch it first when it does not.
// Superseded responses are not errors.
func (s *Service) Apply(ctx context.Context, ctrl *directory.Controller, restored bool, in Intent) error {
	var err error
	switch in.Kind {
	case IntentReset:
		err = ctrl.ResetSearch(ctx)
	case IntentPageSize:
		err = ctrl.ChangePageSize(ctx, in.PageSize)
	case IntentPage:
		if !restored {
			if err = ctrl.Refresh(ctx); err != nil {
				break
			}
		}
		_, err = ctrl.ChangePage(ctx, in.PageIndex)
	case IntentGlobalSearch:
		err = ctrl.GlobalSearch(ctx, in.Term)
	case IntentLocalFilter:
		if !restored {
			if err = ctrl.Refresh(ctx); err != nil {
				break
			}
		}
		ctrl.LocalFilter(in.Term)
	default:
		err = ctrl.Refresh(ctx)
	}
	if errors.Is(err, directory.ErrStale) {
		return nil
	}
	return err
}

// Updater returns the upstream used to save edits for p.
func (s *Service) Updater(p shared.Principal) directory.Service {
	return s.backend.ForOperator(p)
}
