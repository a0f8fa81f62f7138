package directory

import "context"

// Service is the remote user directory the controller reads from and mutates.
type Service interface {
	ListUsersPage(ctx context.Context, q PageQuery) (PageResult, error)
	SearchUsers(ctx context.Context, q SearchQuery) (PageResult, error)
	UpdateUser(ctx context.Context, user UserRecord) error
	DeleteUser(ctx context.Context, username string) error
}

// NotificationKind classifies a user-visible notification.
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
)

// Notification is a message surfaced to the person operating the console.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}

// Notifier delivers notifications to whatever presentation is in use.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Prompt describes a confirmation question.
type Prompt struct {
	Title   string
	Message string
	Confirm string
	Cancel  string
}

// Confirmer asks for an explicit yes/no decision.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) (bool, error)
}

// EditSurface lets an operator change a copy of a record. It reports true only
// when the edit was saved.
type EditSurface interface {
	Edit(ctx context.Context, user UserRecord) (bool, error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }
