// Package dashboard renders the admin landing page.
package dashboard

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/jetwayz/admin-console/internal/directory"
	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/users"
)

// Counts summarises the directory by role.
type Counts struct {
	Users  int
	Admins int
}

// Service gathers dashboard figures.
type Service struct {
	backend   users.Backend
	userRole  string
	adminRole string
}

// NewService constructs a Service. userRole and adminRole are the role tags
// counted on the dashboard.
func NewService(backend users.Backend, userRole, adminRole string) *Service {
	return &Service{backend: backend, userRole: userRole, adminRole: adminRole}
}

// Counts fetches both role totals concurrently with single-record pages.
func (s *Service) Counts(ctx context.Context, p shared.Principal) (Counts, error) {
	svc := s.backend.ForOperator(p)
	var out Counts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := svc.ListUsersPage(gctx, directory.PageQuery{Page: 0, Size: 1, Role: s.userRole})
		if err != nil {
			return err
		}
		out.Users = res.TotalElements
		return nil
	})
	g.Go(func() error {
		res, err := svc.ListUsersPage(gctx, directory.PageQuery{Page: 0, Size: 1, Role: s.adminRole})
		if err != nil {
			return err
		}
		out.Admins = res.TotalElements
		return nil
	})
	if err := g.Wait(); err != nil {
		return Counts{}, err
	}
	return out, nil
}
