package seed

import (
	"reflect"
	"testing"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	g1 := NewGenerator(42)
	g2 := NewGenerator(42)

	for i := 0; i < 20; i++ {
		p1 := g1.Next()
		p2 := g2.Next()
		if !reflect.DeepEqual(p1, p2) {
			t.Fatalf("policy %d differs: %#v vs %#v", i, p1, p2)
		}
	}
}

func TestGeneratorSeedsDiverge(t *testing.T) {
	if reflect.DeepEqual(NewGenerator(1).Batch(10), NewGenerator(2).Batch(10)) {
		t.Fatal("different seeds produced identical batches")
	}
}

func TestGeneratorValuesInRange(t *testing.T) {
	g := NewGenerator(7)
	regions := map[string]bool{"northeast": true, "northwest": true, "southeast": true, "southwest": true}
	for i, p := range g.Batch(500) {
		if p.Age < 18 || p.Age > 64 {
			t.Fatalf("policy %d age = %d", i, p.Age)
		}
		if p.BMI < 16 || p.BMI > 48 {
			t.Fatalf("policy %d bmi = %v", i, p.BMI)
		}
		if p.Children < 0 || p.Children > 5 {
			t.Fatalf("policy %d children = %d", i, p.Children)
		}
		if p.Gender != "male" && p.Gender != "female" {
			t.Fatalf("policy %d gender = %q", i, p.Gender)
		}
		if p.DiscountEligibility != "yes" && p.DiscountEligibility != "no" {
			t.Fatalf("policy %d discount_eligibility = %q", i, p.DiscountEligibility)
		}
		if !regions[p.Region] {
			t.Fatalf("policy %d region = %q", i, p.Region)
		}
		if p.Expenses <= 0 || p.Premium <= 0 || p.Premium >= p.Expenses {
			t.Fatalf("policy %d expenses = %v premium = %v", i, p.Expenses, p.Premium)
		}
	}
}
