package core

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCompany Role = "company"
)

// Actor is the capability set of whoever is using the application. It is a
// closed variant: AdminActor, CompanyActor or AnonymousActor. Dispatch with
// MatchActor rather than type switches so every variant is handled.
type Actor interface {
	actor()
}

type AdminActor struct {
	User User
}

type CompanyActor struct {
	User User
}

type AnonymousActor struct{}

func (AdminActor) actor()     {}
func (CompanyActor) actor()   {}
func (AnonymousActor) actor() {}

// PIB returns the company's tax identification number, or "" if the account has none.
func (c CompanyActor) PIB() string {
	if c.User.PIB == nil {
		return ""
	}
	return *c.User.PIB
}

// ActorFor classifies a user profile. A nil user, or one with an unknown
// role, is anonymous.
func ActorFor(u *User) Actor {
	if u == nil {
		return AnonymousActor{}
	}
	switch u.Role {
	case RoleAdmin:
		return AdminActor{User: *u}
	case RoleCompany:
		return CompanyActor{User: *u}
	default:
		return AnonymousActor{}
	}
}

// MatchActor calls the handler for a's variant. A nil Actor is treated as anonymous.
func MatchActor[T any](a Actor, admin func(AdminActor) T, company func(CompanyActor) T, anonymous func(AnonymousActor) T) T {
	switch v := a.(type) {
	case AdminActor:
		return admin(v)
	case CompanyActor:
		return company(v)
	case AnonymousActor:
		return anonymous(v)
	default:
		return anonymous(AnonymousActor{})
	}
}

// IsAdmin reports whether a carries administrator capabilities.
func IsAdmin(a Actor) bool {
	return MatchActor(a,
		func(AdminActor) bool { return true },
		func(CompanyActor) bool { return false },
		func(AnonymousActor) bool { return false },
	)
}

// IsCompany reports whether a acts for a company.
func IsCompany(a Actor) bool {
	return MatchActor(a,
		func(AdminActor) bool { return false },
		func(CompanyActor) bool { return true },
		func(AnonymousActor) bool { return false },
	)
}

// ParseRole normalizes s to a known role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleCompany:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// PermittedStatuses returns the statuses a may assign when creating an invoice.
// Companies may only save drafts or send; admins may set any status.
func PermittedStatuses(a Actor) StatusSet {
	return MatchActor(a,
		func(AdminActor) StatusSet { return AllStatuses },
		func(CompanyActor) StatusSet { return StatusSet{StatusDraft, StatusSent} },
		func(AnonymousActor) StatusSet { return nil },
	)
}
