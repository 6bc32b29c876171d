package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreman2200/funtimes-pgp/internal/compiler"
	"github.com/coreman2200/funtimes-pgp/internal/pgp"
	"github.com/coreman2200/funtimes-pgp/internal/transport"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

const (
	CodeLabelUndefined  = "COMPILE.LABEL_UNDEFINED"
	CodeLabelDuplicate  = "COMPILE.LABEL_DUPLICATE"
	CodeFlowUnknown     = "COMPILE.FLOW_UNKNOWN"
	CodeContract        = "COMPILE.CONTRACT"
	CodeSpriteUndefined = "COMPILE.SPRITE_UNDEFINED"
	CodeWarning         = "COMPILE.WARNING"
	CodeNotConnected    = "TRANSPORT.NOT_CONNECTED"
	CodeOpen            = "TRANSPORT.OPEN"
	CodeSend            = "TRANSPORT.SEND"
	CodeCanceled        = "TRANSPORT.CANCELED"
	CodeGeneric         = "GENERIC"
)

// FromError explains err. A validation error yields one diagnostic per
// violation; nil yields none.
func FromError(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	var ve *compiler.ValidationError
	if errors.As(err, &ve) {
		out := make([]Diagnostic, 0, len(ve.Violations))
		for _, v := range ve.Violations {
			out = append(out, fromViolation(v))
		}
		return out
	}
	var ce *pgp.ContractError
	if errors.As(err, &ce) {
		return []Diagnostic{{
			Severity: Err,
			Code:     CodeContract,
			Summary:  "Scene holds data the printer protocol cannot carry",
			Detail:   err.Error(),
			LikelyCauses: []string{
				"Coordinates or sizes outside 0..65535",
				"Text longer than 255 bytes or a raster row wider than 72 bytes",
			},
			SuggestedFixes: []string{"Split long text into several blocks", "Scale images to 576 dots wide"},
			Evidence:       map[string]any{"op": ce.Op},
		}}
	}
	if errors.Is(err, transport.ErrNotConnected) {
		return []Diagnostic{{
			Severity:       Err,
			Code:           CodeNotConnected,
			Summary:        "No printer connected",
			Detail:         err.Error(),
			SuggestedFixes: []string{"Connect to a port before printing"},
		}}
	}
	var te *transport.Error
	if errors.As(err, &te) {
		return []Diagnostic{fromTransport(te)}
	}
	return []Diagnostic{{Severity: Err, Code: CodeGeneric, Summary: "Unexpected error", Detail: err.Error()}}
}

func fromViolation(v compiler.Violation) Diagnostic {
	ev := map[string]any{"section": v.Section}
	if v.Block >= 0 {
		ev["block"] = v.Block
	}
	switch v.Problem {
	case compiler.UndefinedLabel:
		ev["label"] = v.Label
		return Diagnostic{
			Severity:       Err,
			Code:           CodeLabelUndefined,
			Summary:        fmt.Sprintf("Jump to label %d, which is never defined", v.Label),
			Detail:         v.String(),
			LikelyCauses:   []string{"Typo in the label id", "The section holding the label is not in the flow"},
			SuggestedFixes: []string{fmt.Sprintf("Add a label block with id %d", v.Label)},
			Evidence:       ev,
		}
	case compiler.DuplicateLabel:
		ev["label"] = v.Label
		return Diagnostic{
			Severity:       Err,
			Code:           CodeLabelDuplicate,
			Summary:        fmt.Sprintf("Label %d is defined more than once", v.Label),
			Detail:         v.String(),
			SuggestedFixes: []string{"Give every label a unique id"},
			Evidence:       ev,
		}
	case compiler.UnknownSection:
		return Diagnostic{
			Severity:       Err,
			Code:           CodeFlowUnknown,
			Summary:        fmt.Sprintf("Flow names section %q, which does not exist", v.Section),
			Detail:         v.String(),
			SuggestedFixes: []string{"Fix the section id in the flow list"},
			Evidence:       ev,
		}
	}
	return Diagnostic{Severity: Err, Code: CodeGeneric, Summary: v.String(), Evidence: ev}
}

func fromTransport(te *transport.Error) Diagnostic {
	ev := map[string]any{"op": te.Op}
	switch te.Op {
	case "open":
		return Diagnostic{
			Severity:       Err,
			Code:           CodeOpen,
			Summary:        "Could not open the printer port",
			Detail:         te.Error(),
			LikelyCauses:   []string{"Wrong port name", "Port in use by another program", "Missing permission on the device node"},
			SuggestedFixes: []string{"List ports and pick the printer", "Add your user to the dialout group"},
			Evidence:       ev,
		}
	case "send":
		ev["sent"] = te.Sent
		if errors.Is(te.Err, context.Canceled) || errors.Is(te.Err, context.DeadlineExceeded) {
			return Diagnostic{
				Severity: Warn,
				Code:     CodeCanceled,
				Summary:  fmt.Sprintf("Print canceled after %d bytes", te.Sent),
				Detail:   te.Error(),
				Evidence: ev,
			}
		}
		return Diagnostic{
			Severity:       Err,
			Code:           CodeSend,
			Summary:        fmt.Sprintf("Link failed after %d bytes", te.Sent),
			Detail:         te.Error(),
			LikelyCauses:   []string{"Cable unplugged", "Printer powered off mid-job"},
			SuggestedFixes: []string{"Reconnect and print again; the device does not resume partial jobs"},
			Evidence:       ev,
		}
	}
	return Diagnostic{Severity: Err, Code: CodeGeneric, Summary: "Link error", Detail: te.Error(), Evidence: ev}
}

// FromWarnings wraps compiler warnings.
func FromWarnings(ws []string) []Diagnostic {
	out := make([]Diagnostic, 0, len(ws))
	for _, w := range ws {
		code := CodeWarning
		if strings.Contains(w, "sprite") && strings.HasSuffix(w, "is not defined") {
			code = CodeSpriteUndefined
		}
		out = append(out, Diagnostic{Severity: Warn, Code: code, Summary: w})
	}
	return out
}
