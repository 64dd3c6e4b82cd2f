package checker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/open-policy-agent/opa/rego"

	"github.com/bluwireless/blade/internal/design"
)

// PolicyEngine evaluates externally-authored Rego rules against a
// flattened view of the design graph. It is the extensibility point
// beyond the compiled-in check_* registry: a site can add rules
// without recompiling by dropping .rego files into a policy directory.
type PolicyEngine struct {
	query rego.PreparedEvalQuery
}

// PolicyInput is the data passed to Rego: a flattened, JSON-friendly
// view of the node kinds policies commonly query.
type PolicyInput struct {
	Blocks    []PolicyBlock    `json:"blocks"`
	Registers []PolicyRegister `json:"registers"`
	Commands  []PolicyCommand  `json:"commands"`
}

type PolicyBlock struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Ports []string `json:"ports"`
}

type PolicyRegister struct {
	ID          string `json:"id"`
	Block       string `json:"block"`
	Name        string `json:"name"`
	Addr        int64  `json:"addr"`
	Width       int    `json:"width"`
	BlockAccess string `json:"blockaccess"`
	BusAccess   string `json:"busaccess"`
}

type PolicyCommand struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PolicyViolation is one finding surfaced by a Rego rule.
type PolicyViolation struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// NewPolicyEngine loads every *.rego file under dir and prepares the
// data.blade.rules.violations query.
func NewPolicyEngine(dir string) (*PolicyEngine, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, fmt.Errorf("finding policy files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no policy files found in %s", dir)
	}

	var modules []func(*rego.Rego)
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		modules = append(modules, rego.Module(f, string(content)))
	}

	opts := append(modules, rego.Query("data.blade.rules.violations"))
	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("preparing policy query: %w", err)
	}
	return &PolicyEngine{query: query}, nil
}

// ToPolicyInput flattens project into the shape Rego rules query
// against.
func ToPolicyInput(project *design.Project) PolicyInput {
	var in PolicyInput
	for _, b := range project.Blocks {
		var ports []string
		for _, p := range b.Ports {
			ports = append(ports, p.Name)
		}
		in.Blocks = append(in.Blocks, PolicyBlock{ID: b.ID, Name: b.Name, Type: b.Type, Ports: ports})
		for _, g := range b.RegisterGroups {
			for _, r := range g.Registers {
				in.Registers = append(in.Registers, PolicyRegister{
					ID: r.ID, Block: b.Name, Name: r.Name, Addr: r.Addr, Width: r.Width,
					BlockAccess: r.BlockAccess, BusAccess: r.BusAccess,
				})
			}
		}
	}
	for _, cmd := range project.Commands {
		in.Commands = append(in.Commands, PolicyCommand{ID: cmd.ID, Name: cmd.Name})
	}
	return in
}

// Evaluate runs the prepared query against project's flattened view.
func (e *PolicyEngine) Evaluate(project *design.Project) ([]PolicyViolation, error) {
	data, err := json.Marshal(ToPolicyInput(project))
	if err != nil {
		return nil, fmt.Errorf("marshaling policy input: %w", err)
	}
	var inputMap map[string]interface{}
	if err := json.Unmarshal(data, &inputMap); err != nil {
		return nil, fmt.Errorf("converting policy input: %w", err)
	}

	rs, err := e.query.Eval(context.Background(), rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating policy: %w", err)
	}
	var out []PolicyViolation
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return out, nil
	}
	raw, ok := rs[0].Expressions[0].Value.([]interface{})
	if !ok {
		return out, nil
	}
	for _, v := range raw {
		vmap, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, PolicyViolation{
			Rule:     stringField(vmap, "rule"),
			Severity: stringField(vmap, "severity"),
			Message:  stringField(vmap, "message"),
		})
	}
	return out, nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
