package schema

import (
	"strings"
	"testing"

	"attrition/domain/employee"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmployeeRegistryIncludesDerivedFields(t *testing.T) {
	reg := Employee()

	for _, name := range []string{
		employee.AttrEmployeeID,
		employee.AttrDepartment,
		employee.AttrTenure,
		employee.AttrEngagementScore,
		employee.AttrAttritionProbability,
		employee.AttrRiskLabel,
		employee.AttrRiskFlag,
	} {
		assert.True(t, reg.Has(name), "expected %s in registry", name)
	}

	assert.True(t, reg.IsNumeric(employee.AttrAttritionProbability))
	assert.Equal(t, KindCategorical, reg.KindOf(employee.AttrDepartment))
	assert.Equal(t, KindIdentifier, reg.KindOf(employee.AttrEmployeeID))
	assert.Equal(t, Kind(""), reg.KindOf("salary"))
	assert.False(t, reg.Has("salary"))
}

func TestFromDatasetInfersUndeclaredColumns(t *testing.T) {
	rows := []employee.Record{
		{"department": "Sales", "tenure": "2", "overtime_hours": "12", "location": "Remote"},
		{"department": "Eng", "tenure": "8", "overtime_hours": "", "location": "HQ"},
	}
	reg := FromDataset([]string{"department", "tenure", "overtime_hours", "location"}, rows)

	assert.Equal(t, KindCategorical, reg.KindOf("department"))
	assert.Equal(t, KindNumeric, reg.KindOf("tenure"))
	assert.Equal(t, KindNumeric, reg.KindOf("overtime_hours"))
	assert.Equal(t, KindCategorical, reg.KindOf("location"))

	// identifier and derived fields are always present
	assert.True(t, reg.Has(employee.AttrEmployeeID))
	assert.True(t, reg.Has(employee.AttrRiskLabel))

	// declared but absent columns are not
	assert.False(t, reg.Has(employee.AttrEngagementScore))

	names := reg.Names()
	require.GreaterOrEqual(t, len(names), 4)
	assert.Equal(t, []string{"department", "tenure", "overtime_hours", "location"}, names[:4])
}

func TestInferKindMixedValuesAreCategorical(t *testing.T) {
	rows := []employee.Record{{"grade": "3"}, {"grade": "senior"}}
	assert.Equal(t, KindCategorical, InferKind("grade", rows))
	assert.Equal(t, KindCategorical, InferKind("missing", rows))
}

func TestDescribeListsNamesWithoutValues(t *testing.T) {
	reg := NewRegistry(
		Attribute{Name: "department", Kind: KindCategorical},
		Attribute{Name: "tenure", Kind: KindNumeric, Description: "years"},
	)
	out := reg.Describe()
	assert.True(t, strings.Contains(out, "- department (categorical)"))
	assert.True(t, strings.Contains(out, "- tenure (numeric): years"))
}

func TestNewRegistryReplacesDuplicates(t *testing.T) {
	reg := NewRegistry(
		Attribute{Name: "x", Kind: KindCategorical},
		Attribute{Name: "x", Kind: KindNumeric},
		Attribute{Name: "  "},
	)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, KindNumeric, reg.KindOf("x"))

	var nilReg *Registry
	assert.False(t, nilReg.Has("x"))
	assert.Equal(t, 0, nilReg.Len())
}
