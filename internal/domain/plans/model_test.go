package plans

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	price := decimal.NewFromInt(3000)
	zero := decimal.Zero

	tests := []struct {
		name string
		plan Plan
		want string
	}{
		{"weekly ok", Plan{Kind: KindWeekly, ClassesPerWeek: 2, MonthlyPrice: decimal.NewFromInt(35000)}, ""},
		{"per-class ok", Plan{Kind: KindPerClass, MonthlyPrice: decimal.NewFromInt(15000), PerClassPrice: &price}, ""},
		{"free", Plan{Kind: KindWeekly, ClassesPerWeek: 2}, "monthly price must be greater than zero"},
		{"weekly zero", Plan{Kind: KindWeekly, MonthlyPrice: price}, "weekly plans need at least one class per week"},
		{"weekly per-class price", Plan{Kind: KindWeekly, ClassesPerWeek: 1, MonthlyPrice: price, PerClassPrice: &price}, "weekly plans must not have a per-class price"},
		{"per-class zero price", Plan{Kind: KindPerClass, MonthlyPrice: price, PerClassPrice: &zero}, "per-class plans must have a positive per-class price"},
		{"per-class with limit", Plan{Kind: KindPerClass, ClassesPerWeek: 1, MonthlyPrice: price, PerClassPrice: &price}, "per-class plans must not have a weekly class limit"},
		{"unknown", Plan{Kind: "yearly", MonthlyPrice: price}, "unknown plan kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.want == "" {
				require.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestCapacity(t *testing.T) {
	assert.Equal(t, 3, Plan{Kind: KindWeekly, ClassesPerWeek: 3}.Capacity())
	assert.Equal(t, 0, Plan{Kind: KindPerClass}.Capacity())
}
