package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-pgp/internal/compiler"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/transport"
)

var TestErrorCodes = []struct {
	Name string
	Err  error
	Code string
	Sev  Severity
}{
	{"contract", fmt.Errorf("wrap: %w", &pgp.ContractError{Op: "text", Detail: "too long"}), CodeContract, Err},
	{"not connected", &transport.Error{Op: "send", Err: transport.ErrNotConnected}, CodeNotConnected, Err},
	{"open", &transport.Error{Op: "open", Err: errors.New("busy")}, CodeOpen, Err},
	{"send", &transport.Error{Op: "send", Sent: 128, Err: errors.New("eof")}, CodeSend, Err},
	{"canceled", &transport.Error{Op: "send", Sent: 8, Err: context.Canceled}, CodeCanceled, Warn},
	{"other", errors.New("disk full"), CodeGeneric, Err},
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))
	for _, v := range TestErrorCodes {
		t.Run(v.Name, func(t *testing.T) {
			ds := FromError(v.Err)
			require.Len(t, ds, 1)
			assert.Equal(t, v.Code, ds[0].Code)
			assert.Equal(t, v.Sev, ds[0].Severity)
			assert.NotEmpty(t, ds[0].Summary)
		})
	}
}

func TestValidationErrorPerViolation(t *testing.T) {
	err := &compiler.ValidationError{Violations: []compiler.Violation{
		{Problem: compiler.UndefinedLabel, Section: "loop", Block: 1, Label: 7},
		{Problem: compiler.DuplicateLabel, Section: "loop", Block: 3, Label: 2},
		{Problem: compiler.UnknownSection, Section: "outro", Block: -1},
	}}
	ds := FromError(err)
	require.Len(t, ds, 3)
	assert.Equal(t, CodeLabelUndefined, ds[0].Code)
	assert.Equal(t, 7, ds[0].Evidence["label"])
	assert.Equal(t, "loop", ds[0].Evidence["section"])
	assert.Equal(t, CodeLabelDuplicate, ds[1].Code)
	assert.Equal(t, CodeFlowUnknown, ds[2].Code)
	_, hasBlock := ds[2].Evidence["block"]
	assert.False(t, hasBlock)
}

func TestFromWarnings(t *testing.T) {
	ds := FromWarnings([]string{`section "a" block 0: sprite 3 is not defined`, "something else"})
	require.Len(t, ds, 2)
	assert.Equal(t, CodeSpriteUndefined, ds[0].Code)
	assert.Equal(t, CodeWarning, ds[1].Code)
	assert.Equal(t, Warn, ds[1].Severity)
}
