package access

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"
)

// Policies maps table -> operation -> CEL predicate.
type Policies map[string]map[string]string

// LoadPolicies reads a policies.yml file.
func LoadPolicies(path string) (Policies, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Policies
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse policies: %w", err)
	}
	if p == nil {
		p = Policies{}
	}
	return p, nil
}

// Authorizer checks a row against the write policy for table/op.
type Authorizer interface {
	Authorize(table, op string, scope Scope, row map[string]any) error
}

var _ Authorizer = (*PolicyEngine)(nil)

// PolicyEngine evaluates row predicates before writes reach the database.
// Predicates see `principal` and `row`; anything not listed is denied.
type PolicyEngine struct {
	env      *cel.Env
	policies Policies

	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

func NewPolicyEngine(policies Policies) (*PolicyEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("principal", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &PolicyEngine{env: env, policies: policies, prgCache: map[string]cel.Program{}}

	// compile everything up front so a bad file fails at startup
	for table, ops := range policies {
		for op, expr := range ops {
			if _, err := e.program(expr); err != nil {
				return nil, fmt.Errorf("policy %s.%s: %w", table, op, err)
			}
		}
	}
	return e, nil
}

// Authorize returns ErrPolicyDenied unless the predicate for table/op holds.
func (e *PolicyEngine) Authorize(table, op string, scope Scope, row map[string]any) error {
	expr, ok := e.policies[table][op]
	if !ok {
		return fmt.Errorf("%w: no policy for %s.%s", ErrPolicyDenied, table, op)
	}
	prg, err := e.program(expr)
	if err != nil {
		return err
	}

	if row == nil {
		row = map[string]any{}
	}
	roles := make([]string, len(scope.Roles))
	copy(roles, scope.Roles)

	out, _, err := prg.Eval(map[string]any{
		"principal": map[string]any{
			"user_id":     scope.UserID,
			"tenant_id":   scope.TenantID,
			"super_admin": scope.SuperAdmin,
			"roles":       roles,
		},
		"row": row,
	})
	if err != nil {
		return fmt.Errorf("%w: %s.%s: %v", ErrPolicyDenied, table, op, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return fmt.Errorf("%w: %s.%s", ErrPolicyDenied, table, op)
	}
	return nil
}

func (e *PolicyEngine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	e.prgCache[expr] = prg
	return prg, nil
}
