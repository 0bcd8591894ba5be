// pkg/deploy/target.go

package deploy

import (
	"context"

	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/rdock-dev/rdockctl/pkg/rdock_err"
	"github.com/rdock-dev/rdockctl/pkg/urlpath"
)

// Target is the immutable input of one deployment run, built once from
// operator input and never persisted.
type Target struct {
	Domain       string `validate:"required,fqdn"`
	Username     string `validate:"required,excludesall=:"`
	BasePath     string
	TerminalPort int    `validate:"required,gt=0,lte=65535"`
	EditorPort   int    `validate:"gte=0,lte=65535"`
	Email        string `validate:"omitempty,email"`
	SkipTLS      bool
	SkipEditor   bool
}

var validate = validator.New()

// Normalize canonicalizes the base path. Safe to call repeatedly.
func (t *Target) Normalize() {
	t.BasePath = urlpath.NormalizeBasePath(t.BasePath)
}

// Validate checks operator input before any mutation happens. Failures are
// expected user errors: they exit without stack traces.
func (t *Target) Validate(ctx context.Context) error {
	if err := validate.Struct(t); err != nil {
		return rdock_err.NewExpectedError(ctx, cerr.Wrap(err, "invalid deployment target"))
	}
	if !t.SkipEditor {
		if t.EditorPort == 0 {
			return rdock_err.NewExpectedError(ctx, cerr.New("editor port required unless the editor is skipped"))
		}
		if t.EditorPort == t.TerminalPort {
			return rdock_err.NewExpectedError(ctx, cerr.New("terminal and editor ports must differ"))
		}
	}
	return nil
}
