package vars

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/rustconn/lib/errs"
	"github.com/gravitational/rustconn/types"
)

func scopeWith(vars map[string]types.Variable) *Scope {
	return &Scope{Global: vars}
}

func TestSubstitute_NoTokensIsIdempotent(t *testing.T) {
	s := scopeWith(nil)
	out, err := s.Substitute("plain string with no tokens")
	require.NoError(t, err)
	require.Equal(t, "plain string with no tokens", out)
}

func TestSubstitute_SimpleAndNested(t *testing.T) {
	s := scopeWith(map[string]types.Variable{
		"host":   {Name: "host", Value: "db.${env}.internal"},
		"env":    {Name: "env", Value: "prod"},
	})
	out, err := s.Substitute("${host}")
	require.NoError(t, err)
	require.Equal(t, "db.prod.internal", out)
}

func TestSubstitute_UndefinedVariable(t *testing.T) {
	s := scopeWith(nil)
	_, err := s.Substitute("${missing}")
	require.Error(t, err)
	var ve *errs.VariableError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, errs.VarUndefined, ve.Kind)
}

func TestSubstitute_CircularReference(t *testing.T) {
	s := scopeWith(map[string]types.Variable{
		"a": {Name: "a", Value: "${b}"},
		"b": {Name: "b", Value: "${a}"},
	})
	_, err := s.Substitute("${a}")
	require.Error(t, err)
	var ve *errs.VariableError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, errs.VarCircularReference, ve.Kind)
}

func TestSubstitute_MaxDepthExceeded(t *testing.T) {
	vs := map[string]types.Variable{}
	for i := 0; i < 20; i++ {
		name := string(rune('a' + i))
		next := string(rune('a' + i + 1))
		vs[name] = types.Variable{Name: name, Value: "${" + next + "}"}
	}
	vs["u"] = types.Variable{Name: "u", Value: "leaf"}
	s := &Scope{Global: vs, MaxDepth: 3}
	_, err := s.Substitute("${a}")
	require.Error(t, err)
	var ve *errs.VariableError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, errs.VarMaxDepthExceeded, ve.Kind)
}

func TestSubstitute_LocalOverridesGlobal(t *testing.T) {
	s := &Scope{
		Local:  map[string]types.Variable{"name": {Name: "name", Value: "local-value"}},
		Global: map[string]types.Variable{"name": {Name: "name", Value: "global-value"}},
	}
	out, err := s.Substitute("${name}")
	require.NoError(t, err)
	require.Equal(t, "local-value", out)
}

func TestValidateCommandValue_RejectsMetacharacters(t *testing.T) {
	cases := []string{"foo;rm -rf /", "foo|bar", "foo`whoami`", "foo$(whoami)", "foo\nbar"}
	for _, c := range cases {
		err := ValidateCommandValue("x", c)
		require.Error(t, err, c)
	}
}

func TestValidateCommandValue_AllowsOrdinaryValues(t *testing.T) {
	require.NoError(t, ValidateCommandValue("x", "plain-value_123"))
}

func TestSubstituteAndValidate_ValidatesExpandedResult(t *testing.T) {
	s := scopeWith(map[string]types.Variable{
		"cmd": {Name: "cmd", Value: "foo;bar"},
	})
	_, err := s.SubstituteAndValidate("cmd", "${cmd}")
	require.Error(t, err)
	var ve *errs.VariableError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, errs.VarUnsafeValue, ve.Kind)
}
