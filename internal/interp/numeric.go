package interp

import (
	"math"

	"wrun/internal/wasmerr"
)

// The truncation bounds below are the powers of two just outside each target integer's range. A value traps,
// rather than silently wrapping, when it is on or above the upper bound, or when truncating it toward zero
// would still leave it below the lower bound (for the unsigned targets: at or below -1).
const (
	i32MinAsF = -2147483648.0
	i32MaxAsF = 2147483648.0
	u32MaxAsF = 4294967296.0
	i64MinAsF = -9223372036854775808.0
	i64MaxAsF = 9223372036854775808.0
	u64MaxAsF = 18446744073709551616.0
)

func trapIfNaN(f float64) {
	if math.IsNaN(f) {
		panic(wasmerr.NewTrap(wasmerr.TrapInvalidConversionToInteger, ""))
	}
}

func trapOverflow() { panic(wasmerr.NewTrap(wasmerr.TrapIntegerOverflow, "")) }

func truncI32S(f float64) int32 {
	trapIfNaN(f)
	if f <= i32MinAsF-1 || f >= i32MaxAsF {
		trapOverflow()
	}
	return int32(f)
}

func truncI32U(f float64) uint32 {
	trapIfNaN(f)
	if f <= -1 || f >= u32MaxAsF {
		trapOverflow()
	}
	return uint32(f)
}

func truncI64S(f float64) int64 {
	trapIfNaN(f)
	if f < i64MinAsF || f >= i64MaxAsF {
		trapOverflow()
	}
	return int64(f)
}

func truncI64U(f float64) uint64 {
	trapIfNaN(f)
	if f <= -1 || f >= u64MaxAsF {
		trapOverflow()
	}
	return uint64(f)
}

// Saturating truncation never traps: NaN becomes 0, out-of-range clamps to the target's min/max.
func truncSatI32S(f float64) int32 {
	if math.IsNaN(f) {
		return 0
	}
	if f < i32MinAsF {
		return math.MinInt32
	}
	if f >= i32MaxAsF {
		return math.MaxInt32
	}
	return int32(f)
}

func truncSatI32U(f float64) uint32 {
	if math.IsNaN(f) || f <= -1 {
		return 0
	}
	if f >= u32MaxAsF {
		return math.MaxUint32
	}
	return uint32(f)
}

func truncSatI64S(f float64) int64 {
	if math.IsNaN(f) {
		return 0
	}
	if f < i64MinAsF {
		return math.MinInt64
	}
	if f >= i64MaxAsF {
		return math.MaxInt64
	}
	return int64(f)
}

func truncSatI64U(f float64) uint64 {
	if math.IsNaN(f) || f <= -1 {
		return 0
	}
	if f >= u64MaxAsF {
		return math.MaxUint64
	}
	return uint64(f)
}

func divI32S(a, b int32) int32 {
	if b == 0 {
		panic(wasmerr.NewTrap(wasmerr.TrapIntegerDivideByZero, ""))
	}
	if a == math.MinInt32 && b == -1 {
		trapOverflow()
	}
	return a / b
}

func divI64S(a, b int64) int64 {
	if b == 0 {
		panic(wasmerr.NewTrap(wasmerr.TrapIntegerDivideByZero, ""))
	}
	if a == math.MinInt64 && b == -1 {
		trapOverflow()
	}
	return a / b
}

func divU32(a, b uint32) uint32 {
	if b == 0 {
		panic(wasmerr.NewTrap(wasmerr.TrapIntegerDivideByZero, ""))
	}
	return a / b
}

func divU64(a, b uint64) uint64 {
	if b == 0 {
		panic(wasmerr.NewTrap(wasmerr.TrapIntegerDivideByZero, ""))
	}
	return a / b
}

func remI32S(a, b int32) int32 {
	if b == 0 {
		panic(wasmerr.NewTrap(wasmerr.TrapIntegerDivideByZero, ""))
	}
	if a == math.MinInt32 && b == -1 {
		return 0
	}
	return a % b
}

func remI64S(a, b int64) int64 {
	if b == 0 {
		panic(wasmerr.NewTrap(wasmerr.TrapIntegerDivideByZero, ""))
	}
	if a == math.MinInt64 && b == -1 {
		return 0
	}
	return a % b
}

func remU32(a, b uint32) uint32 {
	if b == 0 {
		panic(wasmerr.NewTrap(wasmerr.TrapIntegerDivideByZero, ""))
	}
	return a % b
}

func remU64(a, b uint64) uint64 {
	if b == 0 {
		panic(wasmerr.NewTrap(wasmerr.TrapIntegerDivideByZero, ""))
	}
	return a % b
}
