package users

import (
	"strings"

	"github.com/jetwayz/admin-console/internal/directory"
	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/upstream"
)

// stateKey holds the operator's directory snapshot in the session.
const stateKey = "directory_state"

// Backend opens the user directory on behalf of one operator.
type Backend interface {
	ForOperator(p shared.Principal) directory.Service
}

// UpstreamBackend binds the upstream client to the operator's token.
func UpstreamBackend(client *upstream.Client) Backend {
	return upstreamBackend{client: client}
}

type upstreamBackend struct {
	client *upstream.Client
}

func (b upstreamBackend) ForOperator(p shared.Principal) directory.Service {
	return b.client.Bind(upstream.Credentials{Token: p.Token})
}

// editForm carries the editable fields of a user record. Username is the key
// and never changes.
type editForm struct {
	Name          string `form:"name" validate:"required,max=100"`
	Email         string `form:"email" validate:"required,email"`
	AccessRole    string `form:"accessRole" validate:"required,oneof=user admin"`
	Gender        string `form:"gender" validate:"omitempty,oneof=male female other"`
	ContactNumber string `form:"contactNumber" validate:"omitempty,numeric,min=7,max=15"`
	Address       string `form:"address" validate:"omitempty,max=255"`
	PinCode       string `form:"pinCode" validate:"omitempty,numeric,min=4,max=10"`
	DOB           string `form:"dob" validate:"omitempty,datetime=2006-01-02"`
}

func formFromUser(u directory.UserRecord) editForm {
	dob := u.DOB
	if t, ok := u.BirthDate(); ok {
		dob = t.Format("2006-01-02")
	}
	return editForm{
		Name:          u.Name,
		Email:         u.Email,
		AccessRole:    strings.ToLower(u.AccessRole),
		Gender:        strings.ToLower(u.Gender),
		ContactNumber: u.ContactNumber,
		Address:       u.Address,
		PinCode:       u.PinCode,
		DOB:           dob,
	}
}

// apply returns a copy of u with the form's fields.
func (f editForm) apply(u directory.UserRecord) directory.UserRecord {
	u.Name = strings.TrimSpace(f.Name)
	u.Email = strings.TrimSpace(f.Email)
	u.AccessRole = f.AccessRole
	u.Gender = f.Gender
	u.ContactNumber = strings.TrimSpace(f.ContactNumber)
	u.Address = strings.TrimSpace(f.Address)
	u.PinCode = strings.TrimSpace(f.PinCode)
	u.DOB = f.DOB
	return u
}

// changedFields lists the form fields that differ from u, for the audit trail.
func (f editForm) changedFields(u directory.UserRecord) []string {
	before := formFromUser(u)
	var changed []string
	pairs := []struct {
		name     string
		old, new string
	}{
		{"name", before.Name, f.Name},
		{"email", before.Email, f.Email},
		{"accessRole", before.AccessRole, f.AccessRole},
		{"gender", before.Gender, f.Gender},
		{"contactNumber", before.ContactNumber, f.ContactNumber},
		{"address", before.Address, f.Address},
		{"pinCode", before.PinCode, f.PinCode},
		{"dob", before.DOB, f.DOB},
	}
	for _, p := range pairs {
		if strings.TrimSpace(p.old) != strings.TrimSpace(p.new) {
			changed = append(changed, p.name)
		}
	}
	return changed
}
