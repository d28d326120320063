package pricing

import "testing"

var testFees = FeeTable{Small: 5000, Medium: 20000, Bulky: 60000}

func TestVATBreakdownSingleItem(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 580}}
	b := VATBreakdown(items)
	if b.SubtotalExclVAT != 500 {
		t.Fatalf("expected subtotal 500, got %d", b.SubtotalExclVAT)
	}
	if b.VATAmount != 80 {
		t.Fatalf("expected vat 80, got %d", b.VATAmount)
	}
	if b.ItemsTotalIncVAT != 580 {
		t.Fatalf("expected total 580, got %d", b.ItemsTotalIncVAT)
	}
}

func TestVATBreakdownInvariant(t *testing.T) {
	items := []Item{
		{Qty: 3, UnitPrice: 1999},
		{Qty: 1, UnitPrice: 75},
		{Qty: 2, UnitPrice: 580},
	}
	b := VATBreakdown(items)
	if b.ItemsTotalIncVAT-b.SubtotalExclVAT != b.VATAmount {
		t.Fatalf("breakdown does not reconcile: %+v", b)
	}
}

func TestVATBreakdownDefaultsQtyToOne(t *testing.T) {
	withZero := VATBreakdown([]Item{{Qty: 0, UnitPrice: 580}})
	withOne := VATBreakdown([]Item{{Qty: 1, UnitPrice: 580}})
	if withZero != withOne {
		t.Fatalf("zero qty should price as one: %+v vs %+v", withZero, withOne)
	}
}

func TestDeliveryFeePickupIsFree(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 580, Class: ClassBulky}}
	if fee := DeliveryFee(items, true, testFees); fee != 0 {
		t.Fatalf("pickup must be free, got %d", fee)
	}
}

func TestDeliveryFeeHighestClassWins(t *testing.T) {
	items := []Item{
		{Qty: 1, UnitPrice: 100, Class: ClassSmall},
		{Qty: 1, UnitPrice: 100, Class: ClassBulky},
		{Qty: 1, UnitPrice: 100, Class: ClassMedium},
	}
	if fee := DeliveryFee(items, false, testFees); fee != testFees.Bulky {
		t.Fatalf("expected bulky fee %d, got %d", testFees.Bulky, fee)
	}
	if fee := DeliveryFee(items[:1], false, testFees); fee != testFees.Small {
		t.Fatalf("expected small fee %d, got %d", testFees.Small, fee)
	}
}

func TestDeliveryFeeEmptyCartUsesSmall(t *testing.T) {
	if fee := DeliveryFee(nil, false, testFees); fee != testFees.Small {
		t.Fatalf("expected small fee for empty cart, got %d", fee)
	}
}

func TestParseClassUnknownFallsBackToSmall(t *testing.T) {
	cases := map[string]Class{
		"small":    ClassSmall,
		"MEDIUM":   ClassMedium,
		" bulky ":  ClassBulky,
		"":         ClassSmall,
		"oversize": ClassSmall,
	}
	for in, want := range cases {
		if got := ParseClass(in); got != want {
			t.Fatalf("ParseClass(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCashbackDefaultPercent(t *testing.T) {
	// 580 inclusive -> 500 exclusive, 5% of 500 = 25
	if got := Cashback([]Item{{Qty: 1, UnitPrice: 580}}); got != 25 {
		t.Fatalf("expected cashback 25, got %d", got)
	}
}

func TestCashbackZeroOverrideDisables(t *testing.T) {
	zero := 0.0
	if got := Cashback([]Item{{Qty: 1, UnitPrice: 580, CashbackPct: &zero}}); got != 0 {
		t.Fatalf("explicit zero percent must disable cashback, got %d", got)
	}
}

func TestCashbackCustomPercentPerQty(t *testing.T) {
	ten := 10.0
	// 2 x 500 exclusive at 10% = 100
	if got := Cashback([]Item{{Qty: 2, UnitPrice: 580, CashbackPct: &ten}}); got != 100 {
		t.Fatalf("expected cashback 100, got %d", got)
	}
}

func TestWalletApplicationClamping(t *testing.T) {
	cases := []struct {
		requested  string
		balance    Money
		grandTotal Money
		want       Money
	}{
		{"800", 1500, 1000, 800},
		{"9999", 300, 1000, 300},
		{"9999", 1500, 1000, 1000},
		{"-50", 1500, 1000, 0},
		{"abc", 1500, 1000, 0},
		{"", 1500, 1000, 0},
		{"100", 0, 1000, 0},
	}
	for _, tc := range cases {
		got := WalletApplication(tc.requested, tc.balance, tc.grandTotal)
		if got != tc.want {
			t.Fatalf("WalletApplication(%q, %d, %d) = %d, want %d",
				tc.requested, tc.balance, tc.grandTotal, got, tc.want)
		}
		if got < 0 {
			t.Fatalf("applied amount went negative: %d", got)
		}
	}
}

func TestResidualPayableNeverNegative(t *testing.T) {
	if got := ResidualPayable(1000, 800); got != 200 {
		t.Fatalf("expected residual 200, got %d", got)
	}
	if got := ResidualPayable(1000, 1200); got != 0 {
		t.Fatalf("residual must not go negative, got %d", got)
	}
}

func TestComputePickupScenario(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 580, Class: ClassSmall}}
	s := Compute(items, true, testFees, "", 0)
	if s.SubtotalExclVAT != 500 || s.VATAmount != 80 || s.ItemsTotalIncVAT != 580 {
		t.Fatalf("unexpected breakdown: %+v", s.Breakdown)
	}
	if s.DeliveryFee != 0 || s.GrandTotal != 580 {
		t.Fatalf("unexpected totals: fee=%d grand=%d", s.DeliveryFee, s.GrandTotal)
	}
}

func TestComputeBulkyDeliveryScenario(t *testing.T) {
	items := []Item{{Qty: 1, UnitPrice: 580, Class: ClassBulky}}
	s := Compute(items, false, testFees, "", 0)
	if s.DeliveryFee != 60000 {
		t.Fatalf("expected delivery fee 60000, got %d", s.DeliveryFee)
	}
	if s.GrandTotal != 60580 {
		t.Fatalf("expected grand total 60580, got %d", s.GrandTotal)
	}
}

func TestComputeWalletScenarios(t *testing.T) {
	items := []Item{{Qty: 2, UnitPrice: 580, Class: ClassSmall}}
	s := Compute(items, true, testFees, "800", 1500)
	if s.GrandTotal != 1160 {
		t.Fatalf("expected grand total 1160, got %d", s.GrandTotal)
	}
	if s.WalletApplied != 800 || s.ResidualPayable != 360 {
		t.Fatalf("unexpected wallet split: applied=%d residual=%d", s.WalletApplied, s.ResidualPayable)
	}

	clamped := Compute(items, true, testFees, "9999", 300)
	if clamped.WalletApplied != 300 || clamped.ResidualPayable != 860 {
		t.Fatalf("unexpected clamped split: applied=%d residual=%d", clamped.WalletApplied, clamped.ResidualPayable)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	items := []Item{
		{Qty: 3, UnitPrice: 1999, Class: ClassMedium},
		{Qty: 1, UnitPrice: 75, Class: ClassSmall},
	}
	first := Compute(items, false, testFees, "250", 400)
	second := Compute(items, false, testFees, "250", 400)
	if first != second {
		t.Fatalf("compute must be pure: %+v vs %+v", first, second)
	}
}
