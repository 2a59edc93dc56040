package listflow

import (
	"strings"

	"github.com/me/mdconsole/pkg/model"
)

// Identity supplies the audit identity attached to every mutation.
type Identity interface {
	Actor() string
	Signature() string
}

// StaticIdentity is an Identity with fixed values, typically loaded from
// the console profile.
type StaticIdentity struct {
	Name string
	Sig  string
}

func (s StaticIdentity) Actor() string     { return s.Name }
func (s StaticIdentity) Signature() string { return s.Sig }

// checkIdentity rejects mutations when no actor is configured rather than
// falling back to a placeholder.
func checkIdentity(id Identity) error {
	if id == nil || strings.TrimSpace(id.Actor()) == "" {
		return model.NewValidationError(model.FieldError{Field: "actor", Message: "no actor identity configured"})
	}
	return nil
}
