package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/garyjia/approval-engine/internal/application/service"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

type fileReport struct {
	File        string             `json:"file"`
	Members     int                `json:"members"`
	Definitions []definitionReport `json:"definitions"`
	Errors      []string           `json:"errors,omitempty"`
}

type definitionReport struct {
	Name           string   `json:"name"`
	OrganizationID string   `json:"organizationId"`
	Steps          int      `json:"steps"`
	Issues         []string `json:"issues,omitempty"`
}

func newValidateCommand(opts *options) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate definition files and report lint findings",
		Long: `Validate decodes each YAML file, converts every definition and approval
payload, and lints the result for overlapping transitions and unreachable steps.
Lint findings only fail the run with --strict.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrinter(cmd, opts)

			reports := make([]fileReport, 0, len(args))
			for _, path := range args {
				reports = append(reports, validateFile(path))
			}

			if p.asJSON {
				if err := p.json(reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					printReport(p, r)
				}
			}

			return summarize(reports, strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "treat lint findings as failures")
	return cmd
}

func validateFile(path string) fileReport {
	report := fileReport{File: path, Definitions: []definitionReport{}}

	seed, err := service.LoadSeedFile(path)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.Members = len(seed.Members)

	defs, err := seed.Convert()
	for _, e := range unjoin(err) {
		report.Errors = append(report.Errors, e.Error())
	}

	for _, def := range defs {
		dr := definitionReport{Name: def.Name, OrganizationID: def.OrganizationID, Steps: len(def.Steps)}
		for _, issue := range domainwf.Lint(def) {
			dr.Issues = append(dr.Issues, issue.Error())
		}
		report.Definitions = append(report.Definitions, dr)
	}
	return report
}

func printReport(p *printer, r fileReport) {
	if len(r.Errors) == 0 {
		p.success("%s: %d definition(s), %d member(s)", r.File, len(r.Definitions), r.Members)
	} else {
		p.fail("%s: %d error(s)", r.File, len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(p.out, "    %s\n", e)
		}
	}

	if len(r.Definitions) == 0 {
		return
	}
	t := newTable("NAME", "ORGANIZATION", "STEPS", "ISSUES")
	for _, d := range r.Definitions {
		t.add(d.Name, d.OrganizationID, strconv.Itoa(d.Steps), strconv.Itoa(len(d.Issues)))
	}
	t.render(p.out)

	for _, d := range r.Definitions {
		for _, issue := range d.Issues {
			p.warn("%s: %s", d.Name, issue)
		}
	}
}

func summarize(reports []fileReport, strict bool) error {
	var failed, issues int
	for _, r := range reports {
		if len(r.Errors) > 0 {
			failed++
		}
		for _, d := range r.Definitions {
			issues += len(d.Issues)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", failed, len(reports))
	}
	if strict && issues > 0 {
		return fmt.Errorf("%d lint finding(s)", issues)
	}
	return nil
}

// unjoin splits an errors.Join result back into its parts
func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return joined.Unwrap()
	}
	return []error{err}
}
