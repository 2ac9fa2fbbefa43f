package models

import (
	"fmt"
	"strings"

	"github.com/carmarket/marketauth/internal/common"
)

// Role is the closed set of marketplace roles. The zero value is not a
// valid role; values only come from ParseRole or the constants below.
type Role uint8

const (
	RoleAdmin Role = iota + 1
	RoleSeller
	RoleBuyer
)

var roleNames = map[Role]string{
	RoleAdmin:  "Admin",
	RoleSeller: "Seller",
	RoleBuyer:  "Buyer",
}

// Roles lists every valid role in canonical order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleSeller, RoleBuyer}
}

// ParseRole matches s against the canonical role names, ignoring case and
// surrounding whitespace.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, r := range Roles() {
		if strings.EqualFold(s, roleNames[r]) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", common.ErrInvalidRole, s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", common.ErrInvalidRole, uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
