package policy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
)

// RuleEngine is the embedded Rego evaluator variant. A bundle is loaded
// once from a directory of .rego rule files and optional .json data files;
// the loaded engine is then shared read-only across connections, with
// evaluation itself serialized through mu — the engine is treated as a
// single-entry critical section rather than leaking its internal
// evaluation state through the Evaluator contract.
type RuleEngine struct {
	mu       sync.Mutex
	prepared rego.PreparedEvalQuery
	hash     string
}

// LoadRuleEngine reads all .rego rule files (excluding any whose filename
// contains "_test") and .json data files from dir, in sorted order, and
// compiles them into a RuleEngine. Load fails if no rule files are found.
func LoadRuleEngine(ctx context.Context, dir string) (*RuleEngine, error) {
	ruleFiles, err := listFiles(dir, ".rego", true)
	if err != nil {
		return nil, err
	}
	if len(ruleFiles) == 0 {
		return nil, fmt.Errorf("policy: no .rego files found in %s", dir)
	}

	hasher := sha256.New()
	opts := []func(*rego.Rego){rego.Query("data.pep.decision")}

	for _, name := range ruleFiles {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("policy: reading %s: %w", name, err)
		}
		hasher.Write(content)
		opts = append(opts, rego.Module(name, string(content)))
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	dataFiles, err := listFiles(dir, ".json", false)
	if err != nil {
		return nil, err
	}
	if len(dataFiles) > 0 {
		merged := map[string]any{}
		for _, name := range dataFiles {
			content, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, fmt.Errorf("policy: reading %s: %w", name, err)
			}
			var doc map[string]any
			if err := json.Unmarshal(content, &doc); err != nil {
				return nil, fmt.Errorf("policy: parsing %s: %w", name, err)
			}
			for k, v := range doc {
				merged[k] = v
			}
		}
		opts = append(opts, rego.Store(inmem.NewFromObject(merged)))
	}

	r := rego.New(opts...)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: compiling bundle: %w", err)
	}

	return &RuleEngine{prepared: prepared, hash: hash}, nil
}

// listFiles returns the sorted base names in dir matching ext, optionally
// excluding names containing "_test" (OPA test fixtures, not runtime rules).
func listFiles(dir, ext string, excludeTest bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("policy: reading policy dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		if excludeTest && strings.Contains(e.Name(), "_test") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Evaluate implements Evaluator.
func (e *RuleEngine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	decisionID := uuid.NewString()

	raw, err := json.Marshal(input)
	if err != nil {
		return Decision{}, fmt.Errorf("policy: marshaling input: %w", err)
	}
	var inputMap map[string]any
	if err := json.Unmarshal(raw, &inputMap); err != nil {
		return Decision{}, fmt.Errorf("policy: decoding input: %w", err)
	}

	e.mu.Lock()
	results, err := e.prepared.Eval(ctx, rego.EvalInput(inputMap))
	e.mu.Unlock()
	if err != nil {
		return Decision{}, fmt.Errorf("policy: evaluating rule: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{
			Allow:      false,
			Reason:     "policy evaluation returned undefined",
			DecisionID: decisionID,
			PolicyHash: e.hash,
		}, nil
	}

	decision, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Decision{
			Allow:      false,
			Reason:     "policy evaluation returned undefined",
			DecisionID: decisionID,
			PolicyHash: e.hash,
		}, nil
	}

	allow, _ := decision["allow"].(bool)
	reason, _ := decision["reason"].(string)

	var constraints *Constraints
	if raw, ok := decision["constraints"].(map[string]any); ok {
		c := &Constraints{}
		if v, ok := asUint64(raw["max_bytes"]); ok {
			c.MaxBytes = &v
		}
		if v, ok := asUint32(raw["rate_limit_per_min"]); ok {
			c.RateLimitPerMin = &v
		}
		constraints = c
	}

	return Decision{
		Allow:       allow,
		Reason:      reason,
		Constraints: constraints,
		DecisionID:  decisionID,
		PolicyHash:  e.hash,
	}, nil
}

// PolicyHash implements Evaluator.
func (e *RuleEngine) PolicyHash() string {
	return e.hash
}

func asUint64(v any) (uint64, bool) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func asUint32(v any) (uint32, bool) {
	n, ok := asUint64(v)
	if !ok {
		return 0, false
	}
	return uint32(n), true
}
