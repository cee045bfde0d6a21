package model

import (
	"fmt"
	"math"
)

// Unlimited は上限なしを表す残数です
const Unlimited = math.MaxInt

// CapacityResult は同伴者数の検証結果です
type CapacityResult struct {
	Valid     bool
	Error     string
	Remaining int
}

// IsUnlimited は上限なしの結果かどうかを返します
func (r CapacityResult) IsUnlimited() bool {
	return r.Valid && r.Remaining == Unlimited
}

// EffectiveLimit はゲストに適用される人数上限 (本人を含む) を返します
// ゲスト個別の上限が設定されていればイベントの既定値より優先します。両方 nil なら上限なしです
func EffectiveLimit(globalMax, override *int) *int {
	if override != nil {
		return override
	}
	return globalMax
}

// ValidateCapacity は追加ゲスト数が上限内に収まるかを検証します
func ValidateCapacity(globalMax *int, proposedAdditional int, override *int) CapacityResult {
	limit := EffectiveLimit(globalMax, override)
	if limit == nil {
		return CapacityResult{Valid: true, Remaining: Unlimited}
	}

	total := 1 + proposedAdditional
	if total > *limit {
		allowed := *limit - 1
		noun := "guests"
		if allowed == 1 {
			noun = "guest"
		}
		return CapacityResult{
			Valid:     false,
			Error:     fmt.Sprintf("You can only bring %d additional %s (total of %d including yourself)", allowed, noun, *limit),
			Remaining: 0,
		}
	}

	return CapacityResult{Valid: true, Remaining: max(0, *limit-total)}
}

// IntPtr は int のポインタを返します
func IntPtr(v int) *int {
	return &v
}
