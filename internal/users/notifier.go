package users

import (
	"context"
	"sync"

	"github.com/jetwayz/admin-console/internal/directory"
	"github.com/jetwayz/admin-console/internal/shared"
)

// FlashNotifier queues notifications as session flash messages.
type FlashNotifier struct {
	Session *shared.Session
}

// Notify implements directory.Notifier.
func (f FlashNotifier) Notify(_ context.Context, n directory.Notification) {
	if f.Session == nil {
		return
	}
	f.Session.AddFlash(toFlash(n))
}

// Collector keeps notifications for responses that carry them inline.
type Collector struct {
	mu   sync.Mutex
	list []directory.Notification
}

// Notify implements directory.Notifier.
func (c *Collector) Notify(_ context.Context, n directory.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, n)
}

// Notifications returns what was collected so far.
func (c *Collector) Notifications() []directory.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]directory.Notification{}, c.list...)
}

// FlushTo queues the collected notifications as flash messages on sess and
// forgets them.
func (c *Collector) FlushTo(sess *shared.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sess != nil {
		for _, n := range c.list {
			sess.AddFlash(toFlash(n))
		}
	}
	c.list = nil
}

func toFlash(n directory.Notification) shared.FlashMessage {
	return shared.FlashMessage{Kind: string(n.Kind), Title: n.Title, Message: n.Message}
}

// decision answers a delete prompt with what the operator already posted.
type decision bool

func (d decision) Confirm(context.Context, directory.Prompt) (bool, error) {
	return bool(d), nil
}

// formEditor saves the submitted edit form over the record being edited.
type formEditor struct {
	form    editForm
	service directory.Service
}

func (e formEditor) Edit(ctx context.Context, user directory.UserRecord) (bool, error) {
	if err := e.service.UpdateUser(ctx, e.form.apply(user)); err != nil {
		return false, err
	}
	return true, nil
}

// promptCapture declines every prompt and keeps the last one so a
// confirmation page can show the exact question.
type promptCapture struct {
	prompt directory.Prompt
}

func (p *promptCapture) Confirm(_ context.Context, pr directory.Prompt) (bool, error) {
	p.prompt = pr
	return false, nil
}
