package layout

import (
	"math"
	"testing"
)

// TestPtMmRoundTrip 验证 pt↔mm 换算的往返精度（允许极小的浮点误差）。
func TestPtMmRoundTrip(t *testing.T) {
	samples := []float64{0, 0.001, 1, 12, 14.4, 72, 96, 144, 1000}
	for _, pt := range samples {
		mm := pt * PtToMm
		back := mm * MmToPt
		if diff := math.Abs(back - pt); diff > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt mm=%g back=%g diff=%g", pt, mm, back, diff)
		}
	}
}

// TestConvertIsAGroup 覆盖所有单位组合：同单位转换严格相等，往返在容差内。
func TestConvertIsAGroup(t *testing.T) {
	units := []Unit{UnitMM, UnitCM, UnitIN, UnitPT, UnitPX}
	values := []float64{-12.5, 0, 0.333, 1, 210, 841.89, 1e4}
	for _, u1 := range units {
		for _, v := range values {
			if got := Convert(v, u1, u1); got != v {
				t.Fatalf("Convert(%g, %s, %s) = %g, want exact", v, u1, u1, got)
			}
			for _, u2 := range units {
				back := Convert(Convert(v, u1, u2), u2, u1)
				if diff := math.Abs(back - v); diff > 1e-9*math.Max(1, math.Abs(v)) {
					t.Fatalf("round trip %s→%s→%s of %g gave %g", u1, u2, u1, v, back)
				}
				for _, u3 := range units {
					direct := Convert(v, u1, u3)
					chained := Convert(Convert(v, u1, u2), u2, u3)
					if diff := math.Abs(direct - chained); diff > 1e-9*math.Max(1, math.Abs(direct)) {
						t.Fatalf("composition %s→%s→%s mismatch: %g vs %g", u1, u2, u3, chained, direct)
					}
				}
			}
		}
	}
}

// TestLengthToConversions 覆盖 Length 在常见单位上的转换正确性。
func TestLengthToConversions(t *testing.T) {
	if got := (Length{Value: 1, Unit: UnitIN}).ToMM(); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("1in 转 mm 期望 25.4，实际 %g", got)
	}
	if got := (Length{Value: 2.54, Unit: UnitCM}).ToMM(); math.Abs(got-25.4) > 1e-9 {
		t.Fatalf("2.54cm 转 mm 期望 25.4，实际 %g", got)
	}
	if got := (Length{Value: 96, Unit: UnitPX}).To(UnitPT); math.Abs(got-72) > 1e-9 {
		t.Fatalf("96px 转 pt 期望 72，实际 %g", got)
	}
	if got := ParseLengthIn("10mm", UnitPT); math.Abs(got-10*MmToPt) > 1e-9 {
		t.Fatalf("10mm 转 pt 期望 %g，实际 %g", 10*MmToPt, got)
	}
	if got := ParseLengthIn("42", UnitPT); got != 42 {
		t.Fatalf("无单位数值应保持原值，实际 %g", got)
	}
}

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{"mm": UnitMM, "IN": UnitIN, " pt ": UnitPT, "px": UnitPX, "cm": UnitCM} {
		got, err := ParseUnit(in)
		if err != nil || got != want {
			t.Fatalf("ParseUnit(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseUnit("furlong"); err == nil {
		t.Fatalf("expected error for unknown unit")
	}
}
