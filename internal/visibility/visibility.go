// Package visibility resolves the effective display state of each question
// in a form given the current answer set. Rules are declarative and
// side-effect free; resolution is a pure function so previews and submits
// can both call it without coordination.
package visibility

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/formsmith/formsmith/model"
)

// State is the resolved display state of a single question.
type State struct {
	Visible  bool `json:"visible"`
	Required bool `json:"required"`
	Disabled bool `json:"disabled"`
}

// Resolve computes the state of every question keyed by tkey. Answers are
// keyed by the controlling question's tkey; values are coerced to strings
// before comparison so numeric and boolean answers compare predictably.
//
// Per question the rules are grouped by action and an action applies only
// when all of its rules hold. A question with show rules starts hidden and
// becomes visible when the show group holds; hide beats show; require and
// disable are additive on top of the question's own flags.
func Resolve(questions []model.Question, answers map[string]any) map[string]State {
	states := make(map[string]State, len(questions))
	for _, q := range questions {
		if q.Status == model.StatusArchived {
			continue
		}
		states[q.TKey] = resolveOne(q, answers)
	}
	return states
}

func resolveOne(q model.Question, answers map[string]any) State {
	st := State{Visible: true, Required: q.Required}
	if len(q.Visibility) == 0 {
		return st
	}

	groups := map[model.VisibilityAction]bool{}
	seen := map[model.VisibilityAction]bool{}
	for _, r := range q.Visibility {
		holds := evaluate(r, answers)
		if !seen[r.Action] {
			groups[r.Action] = holds
			seen[r.Action] = true
		} else {
			groups[r.Action] = groups[r.Action] && holds
		}
	}

	if seen[model.ActionShow] {
		st.Visible = groups[model.ActionShow]
	}
	if seen[model.ActionHide] && groups[model.ActionHide] {
		st.Visible = false
	}
	if seen[model.ActionRequire] && groups[model.ActionRequire] {
		st.Required = true
	}
	if seen[model.ActionDisable] && groups[model.ActionDisable] {
		st.Disabled = true
	}

	// Hidden questions never demand an answer.
	if !st.Visible {
		st.Required = false
	}
	return st
}

func evaluate(r model.VisibilityRule, answers map[string]any) bool {
	raw := answers[r.ControllingTKey]
	got := Coerce(raw)
	switch r.Operator {
	case model.OpEquals:
		return got == r.Value
	case model.OpNotEquals:
		return got != r.Value
	case model.OpContains:
		// Multi-select answers arrive as arrays; contains is membership
		// there, substring everywhere else.
		if items, ok := SliceValues(raw); ok {
			for _, item := range items {
				if item == r.Value {
					return true
				}
			}
			return false
		}
		return r.Value != "" && strings.Contains(got, r.Value)
	case model.OpIsEmpty:
		return got == ""
	default:
		return false
	}
}

// Coerce renders an answer value as its comparison string. Nil becomes the
// empty string, floats drop a trailing ".0" so JSON-decoded integers round
// trip, slices join their coerced elements with a comma (so an empty
// multi-select coerces to the empty string), and everything else goes
// through fmt.
func Coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		if items, ok := SliceValues(v); ok {
			return strings.Join(items, ",")
		}
		return fmt.Sprintf("%v", t)
	}
}

// SliceValues returns the element-wise coercion of an array answer and
// whether the value was an array at all. JSON-decoded multi-selects are
// []any; callers holding typed data may pass []string directly.
func SliceValues(v any) ([]string, bool) {
	switch t := v.(type) {
	case []any:
		items := make([]string, len(t))
		for i, e := range t {
			items[i] = Coerce(e)
		}
		return items, true
	case []string:
		return t, true
	default:
		return nil, false
	}
}
