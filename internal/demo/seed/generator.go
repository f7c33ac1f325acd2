package seed

import (
	"math"
	"math/rand"
)

// Policy is one row of the medical_insurance table.
type Policy struct {
	Age                 int64   `db:"age" parquet:"age"`
	Gender              string  `db:"gender" parquet:"gender"`
	BMI                 float64 `db:"bmi" parquet:"bmi"`
	Children            int64   `db:"children" parquet:"children"`
	DiscountEligibility string  `db:"discount_eligibility" parquet:"discount_eligibility"`
	Region              string  `db:"region" parquet:"region"`
	Expenses            float64 `db:"expenses" parquet:"expenses"`
	Premium             float64 `db:"premium" parquet:"premium"`
}

var columns = []string{"age", "gender", "bmi", "children", "discount_eligibility", "region", "expenses", "premium"}

type Generator struct {
	rnd *rand.Rand
}

// NewGenerator returns a generator whose output depends only on seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Next() Policy {
	age := int64(18 + g.rnd.Intn(47))
	bmi := round1(16 + g.rnd.Float64()*32)
	children := int64(g.pickChildren())
	discount := "no"
	if g.rnd.Intn(100) < 35 {
		discount = "yes"
	}

	expenses := 1200 + float64(age)*240 + math.Max(0, bmi-25)*390 + float64(children)*475
	expenses *= 0.85 + g.rnd.Float64()*0.3
	premium := expenses * 0.012
	if discount == "yes" {
		premium *= 0.9
	}

	return Policy{
		Age:                 age,
		Gender:              pickOne(g.rnd, []string{"male", "female"}),
		BMI:                 bmi,
		Children:            children,
		DiscountEligibility: discount,
		Region:              pickOne(g.rnd, []string{"northeast", "northwest", "southeast", "southwest"}),
		Expenses:            round2(expenses),
		Premium:             round2(premium),
	}
}

// Batch returns the next n policies.
func (g *Generator) Batch(n int) []Policy {
	out := make([]Policy, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Next())
	}
	return out
}

func (g *Generator) pickChildren() int {
	p := g.rnd.Intn(100)
	switch {
	case p < 43:
		return 0
	case p < 67:
		return 1
	case p < 85:
		return 2
	case p < 96:
		return 3
	case p < 98:
		return 4
	default:
		return 5
	}
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
