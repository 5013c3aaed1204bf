package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/garyjia/approval-engine/internal/application/service"
	"github.com/garyjia/approval-engine/internal/domain/entity"
	domainwf "github.com/garyjia/approval-engine/internal/domain/workflow"
)

type resolveResult struct {
	Definition string                    `json:"definition"`
	Submitter  string                    `json:"submitter"`
	Context    entity.RequestContext     `json:"context"`
	Steps      []stepReport              `json:"steps"`
	EntryStep  string                    `json:"entryStep,omitempty"`
	Actions    map[string]actionApprover `json:"actions,omitempty"`
}

type stepReport struct {
	Name    string   `json:"name"`
	Order   int      `json:"order"`
	Applies bool     `json:"applies"`
	Notes   []string `json:"notes,omitempty"`
}

type actionApprover struct {
	Approvers   []string `json:"approvers"`
	Stalled     bool     `json:"stalled,omitempty"`
	AutoAdvance bool     `json:"autoAdvance,omitempty"`
}

func newResolveCommand(opts *options) *cobra.Command {
	var (
		definition string
		submitter  string
		sets       []string
	)

	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Preview the entry step and approvers of a request",
		Long: `Resolve routes a hypothetical request through a definition from a seed file.
It reports which steps apply, the step the request would enter, and the approvers
resolved from the members listed in the same file.

Context values given with --set are parsed as YAML scalars, so amount=1200 is a
number and urgent=true a boolean.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := parseContext(sets)
			if err != nil {
				return err
			}

			seed, err := service.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			defs, err := seed.Convert()
			if err != nil {
				return err
			}
			def, err := pickDefinition(defs, definition)
			if err != nil {
				return err
			}

			result, err := resolve(cmd.Context(), def, newSeedRoster(seed.Members), submitter, rc)
			if err != nil {
				return err
			}

			p := newPrinter(cmd, opts)
			if p.asJSON {
				return p.json(result)
			}
			printResolution(p, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&definition, "definition", "d", "", "definition name (optional when the file holds one)")
	cmd.Flags().StringVarP(&submitter, "submitter", "u", "", "member id submitting the request")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "request context value as key=value, repeatable")
	_ = cmd.MarkFlagRequired("submitter")

	return cmd
}

func parseContext(sets []string) (entity.RequestContext, error) {
	rc := entity.RequestContext{}
	for _, kv := range sets {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", kv)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		rc[key] = value
	}
	return rc, nil
}

func pickDefinition(defs []*entity.WorkflowDefinition, name string) (*entity.WorkflowDefinition, error) {
	if name == "" {
		if len(defs) == 1 {
			return defs[0], nil
		}
		return nil, fmt.Errorf("file holds %d definitions, choose one with --definition", len(defs))
	}
	for _, def := range defs {
		if strings.EqualFold(def.Name, name) {
			return def, nil
		}
	}
	return nil, fmt.Errorf("definition %q not found", name)
}

func resolve(ctx context.Context, def *entity.WorkflowDefinition, roster domainwf.Roster, submitter string, rc entity.RequestContext) (*resolveResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	evaluator := domainwf.NewConditionEvaluator(zap.NewNop())
	applicability := domainwf.NewApplicabilityResolver(evaluator)

	result := &resolveResult{Definition: def.Name, Submitter: submitter, Context: rc}
	for _, step := range def.OrderedSteps() {
		sr := stepReport{Name: step.Name, Order: step.Order, Applies: applicability.Applies(step, rc)}
		for _, c := range step.Conditions {
			if _, note := evaluator.Explain(c, rc); note != "" {
				sr.Notes = append(sr.Notes, note)
			}
		}
		result.Steps = append(result.Steps, sr)
	}

	entry, err := applicability.FirstForSubmission(def, rc)
	if err != nil {
		return result, err
	}
	result.EntryStep = entry.Name

	instance := &entity.WorkflowInstance{
		OrganizationID: def.OrganizationID,
		SubmittedByID:  submitter,
		Context:        rc,
	}
	resolutions, err := domainwf.NewAssigneeResolver(roster).ResolveStep(ctx, entry, instance)
	if err != nil {
		return result, err
	}

	result.Actions = make(map[string]actionApprover, len(resolutions))
	for action, res := range resolutions {
		result.Actions[action] = actionApprover{
			Approvers:   res.Approvers,
			Stalled:     res.Stalled,
			AutoAdvance: res.AutoAdvance,
		}
	}
	return result, nil
}

func printResolution(p *printer, r *resolveResult) {
	t := newTable("ORDER", "STEP", "APPLIES", "NOTES")
	for _, s := range r.Steps {
		applies := "no"
		if s.Applies {
			applies = "yes"
		}
		t.add(fmt.Sprint(s.Order), s.Name, applies, strings.Join(s.Notes, "; "))
	}
	t.render(p.out)
	fmt.Fprintln(p.out)

	p.success("%s enters step %q", r.Submitter, r.EntryStep)

	actions := make([]string, 0, len(r.Actions))
	for name := range r.Actions {
		actions = append(actions, name)
	}
	sort.Strings(actions)

	for _, name := range actions {
		a := r.Actions[name]
		label := name
		if label == "" {
			label = "(step)"
		}
		switch {
		case a.AutoAdvance:
			p.success("%s: advances automatically", label)
		case a.Stalled:
			p.warn("%s: no eligible approver, the step would stall", label)
		default:
			p.success("%s: %s", label, strings.Join(a.Approvers, ", "))
		}
	}
}

// seedRoster serves the members of a seed file
type seedRoster struct {
	members []*entity.Member
}

func newSeedRoster(members []*entity.Member) *seedRoster {
	return &seedRoster{members: members}
}

func (r *seedRoster) GetMember(ctx context.Context, memberID string) (*entity.Member, error) {
	for _, m := range r.members {
		if m.ID == memberID {
			return m, nil
		}
	}
	return nil, nil
}

func (r *seedRoster) ListActiveByRole(ctx context.Context, organizationID, role string) ([]*entity.Member, error) {
	var out []*entity.Member
	for _, m := range r.members {
		if m.OrganizationID == organizationID && m.IsActive && m.HasRole(role) {
			out = append(out, m)
		}
	}
	return out, nil
}
