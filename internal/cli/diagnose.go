package cli

import (
	"fmt"

	"github.com/hollis-b/affectlens/internal/compiler"
	"github.com/hollis-b/affectlens/internal/model"
	"github.com/hollis-b/affectlens/internal/report"
)

// mergedDomains overlays definition-set domain overrides on the defaults.
func mergedDomains(defs *compiler.Definitions) map[model.AxisGroup]model.Domain {
	domains := model.DefaultDomains()
	for g, d := range defs.Domains {
		domains[g] = d
	}
	return domains
}

func findExpression(defs *compiler.Definitions, id string) (model.Expression, error) {
	for _, e := range defs.Expressions {
		if e.ID == id {
			return e, nil
		}
	}
	return model.Expression{}, fmt.Errorf("expression %q not defined", id)
}

func findPrototype(defs *compiler.Definitions, id string) (model.Prototype, error) {
	for _, p := range defs.Prototypes {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Prototype{}, fmt.Errorf("prototype %q not defined", id)
}

// emitDiagnostic writes the diagnostic document. JSON output is the
// canonical form so identical runs diff clean; text output is the
// command-specific summary.
func emitDiagnostic(formatter *OutputFormatter, d *report.Diagnostic, text func() error) error {
	if formatter.Format == "json" {
		data, err := d.Marshal()
		if err != nil {
			return err
		}
		fmt.Fprintln(formatter.Writer, string(data))
		return nil
	}
	return text()
}
