package auth

import (
	"sort"
	"time"

	"github.com/franciscosanchezn/gin-device-auth/internal/models"
)

// SlimUser is the part of a user's profile a client may see. OID is always
// set; every other field is present only if a granted scope covers it.
type SlimUser struct {
	OID       string     `json:"oid"`
	Email     *string    `json:"email,omitempty"`
	FirstName *string    `json:"firstName,omitempty"`
	LastName  *string    `json:"lastName,omitempty"`
	Phone     *string    `json:"phone,omitempty"`
	Address   *string    `json:"address,omitempty"`
	Address2  *string    `json:"address2,omitempty"`
	City      *string    `json:"city,omitempty"`
	State     *string    `json:"state,omitempty"`
	Zip       *string    `json:"zip,omitempty"`
	Birthday  *time.Time `json:"birthday,omitempty"`
	Avatar    *string    `json:"avatar,omitempty"`
}

// ProjectClaims maps granted scopes to profile attributes. The result depends
// only on the set of granted categories, never on grant order.
func ProjectClaims(user *models.User, grants []models.ScopeGrant) SlimUser {
	slim := SlimUser{OID: user.UUID}
	for _, g := range grants {
		if !g.Granted {
			continue
		}
		switch g.Scope.Category() {
		case "email":
			slim.Email = &user.Email
		case "name":
			slim.FirstName = &user.FirstName
			slim.LastName = &user.LastName
		case "phone":
			slim.Phone = &user.Phone
		case "address":
			projectAddress(&slim, user)
		case "birthday":
			slim.Birthday = user.Birthday
		case "profile":
			slim.Email = &user.Email
			slim.FirstName = &user.FirstName
			slim.LastName = &user.LastName
			slim.Phone = &user.Phone
			projectAddress(&slim, user)
			slim.Birthday = user.Birthday
			slim.Avatar = &user.Avatar
		}
	}
	return slim
}

func projectAddress(slim *SlimUser, user *models.User) {
	slim.Address = &user.Address
	slim.Address2 = &user.Address2
	slim.City = &user.City
	slim.State = &user.State
	slim.Zip = &user.Zip
}

// GrantedScopeNames returns the sorted names of the granted scopes
func GrantedScopeNames(grants []models.ScopeGrant) []string {
	names := make([]string, 0, len(grants))
	for _, g := range grants {
		if g.Granted {
			names = append(names, g.Scope.Scope)
		}
	}
	sort.Strings(names)
	return names
}

// missingRequiredScopes returns the application's required scopes that have no granted record
func missingRequiredScopes(app *models.Application, grants []models.ScopeGrant) []models.ApplicationScope {
	granted := make(map[uint]bool, len(grants))
	for _, g := range grants {
		if g.Granted {
			granted[g.ScopeID] = true
		}
	}
	var missing []models.ApplicationScope
	for _, s := range app.RequiredScopes() {
		if !granted[s.ID] {
			missing = append(missing, s)
		}
	}
	return missing
}
