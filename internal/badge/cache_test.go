package badge

import "testing"

func TestFieldInt(t *testing.T) {
	fields := map[string]string{
		"confirmed_bell": "3",
		"delta_bell":     "not-a-number",
	}
	if got := fieldInt(fields, "confirmed_bell"); got != 3 {
		t.Errorf("fieldInt(confirmed_bell) = %d, want 3", got)
	}
	if got := fieldInt(fields, "delta_bell"); got != 0 {
		t.Errorf("不正値は0に丸める: got %d", got)
	}
	if got := fieldInt(fields, "missing"); got != 0 {
		t.Errorf("欠落フィールドは0: got %d", got)
	}
}

func TestClampNonNegative(t *testing.T) {
	if got := clampNonNegative(-2); got != 0 {
		t.Errorf("clampNonNegative(-2) = %d, want 0", got)
	}
	if got := clampNonNegative(5); got != 5 {
		t.Errorf("clampNonNegative(5) = %d, want 5", got)
	}
}
