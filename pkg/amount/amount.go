// Package amount 代币金额与展示精度之间的无损转换
//
// 链上金额始终以最小单位（wei或ERC20基础单位）的任意精度整数保存，
// 展示层按代币decimals转换为十进制字符串。双向转换必须精确，永不
// 经过浮点数。
package amount

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/madfrog2047/Maskbook/internal/models"
	"github.com/madfrog2047/Maskbook/pkg/errors"
)

// MaxUint256 uint256可表示的最大值，链上金额的上界
var MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

const maxDecimals = 77 // decimal(65,0)列与uint256均不会超过77位十进制

// FormatUnits 最小单位整数转展示用十进制字符串
//
// 精确转换：小数部分去除尾随零，无小数部分时只输出整数。
func FormatUnits(v *models.BigInt, decimals int) (string, error) {
	if v == nil {
		return "", errors.New(errors.ErrPrecision, "nil amount", nil)
	}
	if decimals < 0 || decimals > maxDecimals {
		return "", errors.New(errors.ErrPrecision,
			fmt.Sprintf("unsupported decimals: %d", decimals), nil)
	}
	if decimals == 0 {
		return v.String(), nil
	}

	divisor := pow10(decimals)
	quo, rem := new(big.Int).QuoRem(&v.Int, divisor, new(big.Int))

	if rem.Sign() == 0 {
		return quo.String(), nil
	}

	frac := fmt.Sprintf("%0*s", decimals, rem.String())
	frac = strings.TrimRight(frac, "0")
	return quo.String() + "." + frac, nil
}

// ParseUnits 展示用十进制字符串转最小单位整数
//
// 拒绝负数、非法字符、超出decimals的小数位（精度丢失）以及超出
// uint256范围的值，绝不静默截断。
func ParseUnits(s string, decimals int) (*models.BigInt, error) {
	if decimals < 0 || decimals > maxDecimals {
		return nil, errors.New(errors.ErrPrecision,
			fmt.Sprintf("unsupported decimals: %d", decimals), nil)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New(errors.ErrPrecision, "empty amount", nil)
	}
	if strings.HasPrefix(s, "-") {
		return nil, errors.New(errors.ErrPrecision, "negative amount: "+s, nil)
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
		if strings.IndexByte(fracPart, '.') >= 0 {
			return nil, errors.New(errors.ErrPrecision, "malformed amount: "+s, nil)
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return nil, errors.New(errors.ErrPrecision, "malformed amount: "+s, nil)
	}

	if len(fracPart) > decimals {
		// 超出精度的尾随零可以安全丢弃，非零则拒绝
		extra := fracPart[decimals:]
		if strings.Trim(extra, "0") != "" {
			return nil, errors.New(errors.ErrPrecision,
				fmt.Sprintf("amount %s exceeds %d decimals", s, decimals), nil)
		}
		fracPart = fracPart[:decimals]
	}

	value, ok := new(big.Int).SetString(intPart, 10)
	if !ok {
		return nil, errors.New(errors.ErrPrecision, "malformed amount: "+s, nil)
	}
	value.Mul(value, pow10(decimals))

	if fracPart != "" {
		frac, ok := new(big.Int).SetString(fracPart, 10)
		if !ok {
			return nil, errors.New(errors.ErrPrecision, "malformed amount: "+s, nil)
		}
		frac.Mul(frac, pow10(decimals-len(fracPart)))
		value.Add(value, frac)
	}

	if value.Cmp(MaxUint256) > 0 {
		return nil, errors.New(errors.ErrPrecision, "amount exceeds uint256 range: "+s, nil)
	}

	result, err := models.NewBigInt(value)
	if err != nil {
		return nil, errors.New(errors.ErrPrecision, "invalid amount", err)
	}
	return result, nil
}

// CheckRange 校验金额在uint256范围内
func CheckRange(v *models.BigInt) error {
	if v == nil {
		return errors.New(errors.ErrPrecision, "nil amount", nil)
	}
	if v.Int.Cmp(MaxUint256) > 0 {
		return errors.New(errors.ErrPrecision, "amount exceeds uint256 range: "+v.String(), nil)
	}
	return nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
