package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/pkg/errors"
)

const maxUint256Str = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

// 最小单位 -> 展示 -> 最小单位必须精确还原
func TestRoundTripExact(t *testing.T) {
	cases := []string{
		"0",
		"1",
		"1000000000000000000", // 10^18
		maxUint256Str,         // 2^256-1
	}

	for _, s := range cases {
		for _, decimals := range []int{0, 6, 18} {
			v, err := models.NewBigIntFromString(s)
			require.NoError(t, err)

			display, err := FormatUnits(v, decimals)
			require.NoError(t, err)

			back, err := ParseUnits(display, decimals)
			require.NoError(t, err, "value %s decimals %d display %s", s, decimals, display)
			assert.Zero(t, v.Cmp(back), "value %s decimals %d", s, decimals)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	v, err := models.NewBigIntFromString("1234500000000000000")
	require.NoError(t, err)

	display, err := FormatUnits(v, 18)
	require.NoError(t, err)
	assert.Equal(t, "1.2345", display)

	display, err = FormatUnits(models.NewBigIntFromUint64(42), 0)
	require.NoError(t, err)
	assert.Equal(t, "42", display)

	// 小于1个展示单位
	display, err = FormatUnits(models.NewBigIntFromUint64(1), 18)
	require.NoError(t, err)
	assert.Equal(t, "0.000000000000000001", display)

	_, err = FormatUnits(nil, 18)
	assert.Error(t, err)

	_, err = FormatUnits(models.NewBigIntFromUint64(1), -1)
	assert.Error(t, err)
}

func TestParseUnits(t *testing.T) {
	v, err := ParseUnits("1.5", 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.String())

	v, err = ParseUnits(".5", 6)
	require.NoError(t, err)
	assert.Equal(t, "500000", v.String())

	// 超出精度的尾随零允许
	v, err = ParseUnits("1.500000000", 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", v.String())
}

func TestParseUnitsRejects(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals int
	}{
		{"negative", "-1", 18},
		{"empty", "", 18},
		{"letters", "12abc", 18},
		{"two dots", "1.2.3", 18},
		{"precision loss", "1.1234567", 6},
		{"fraction with zero decimals", "0.1", 0},
		{"over uint256", "115792089237316195423570985008687907853269984665640564039457584007913129639936", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUnits(tt.input, tt.decimals)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrPrecision), "expected precision error, got %v", err)
		})
	}
}

func TestCheckRange(t *testing.T) {
	max, err := models.NewBigIntFromString(maxUint256Str)
	require.NoError(t, err)
	assert.NoError(t, CheckRange(max))

	over := max.Add(models.NewBigIntFromUint64(1))
	assert.Error(t, CheckRange(over))
	assert.Error(t, CheckRange(nil))
}
