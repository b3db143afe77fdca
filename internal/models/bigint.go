package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
)

// BigInt 代币最小单位金额（wei或ERC20基础单位）
// 数据库中存储为decimal(65,0)字符串，禁止负值
type BigInt struct {
	big.Int
}

func NewBigInt(v *big.Int) (*BigInt, error) {
	if v == nil {
		return nil, errors.New("nil big.Int")
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", v.String())
	}
	b := &BigInt{}
	b.Int.Set(v)
	return b, nil
}

func NewBigIntFromUint64(v uint64) *BigInt {
	b := &BigInt{}
	b.Int.SetUint64(v)
	return b
}

// NewBigIntFromString 解析十进制字符串金额
func NewBigIntFromString(s string) (*BigInt, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal string: %q", s)
	}
	return NewBigInt(v)
}

func (b *BigInt) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	return b.Int.String(), nil
}

func (b *BigInt) Scan(value interface{}) error {
	if value == nil {
		return errors.New("cannot scan NULL into BigInt")
	}

	var s string
	switch v := value.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		b.Int.SetInt64(v)
		if b.Int.Sign() < 0 {
			return fmt.Errorf("negative amount in database: %d", v)
		}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into BigInt", value)
	}

	if _, ok := b.Int.SetString(s, 10); !ok {
		return fmt.Errorf("invalid decimal in database: %q", s)
	}
	if b.Int.Sign() < 0 {
		return fmt.Errorf("negative amount in database: %s", s)
	}
	return nil
}

func (b *BigInt) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	// 始终序列化为字符串，避免JSON数值精度丢失
	return []byte(`"` + b.Int.String() + `"`), nil
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return errors.New("cannot unmarshal null into BigInt")
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if _, ok := b.Int.SetString(s, 10); !ok {
		return fmt.Errorf("invalid decimal string: %q", s)
	}
	if b.Int.Sign() < 0 {
		return fmt.Errorf("negative amount: %q", s)
	}
	return nil
}

// Add 返回 b+other 的新值
func (b *BigInt) Add(other *BigInt) *BigInt {
	sum := &BigInt{}
	sum.Int.Add(&b.Int, &other.Int)
	return sum
}

// Sub 返回 b-other，结果为负时报错
func (b *BigInt) Sub(other *BigInt) (*BigInt, error) {
	diff := new(big.Int).Sub(&b.Int, &other.Int)
	return NewBigInt(diff)
}

func (b *BigInt) Cmp(other *BigInt) int {
	return b.Int.Cmp(&other.Int)
}

func (b *BigInt) Clone() *BigInt {
	c := &BigInt{}
	c.Int.Set(&b.Int)
	return c
}

// GormDataType 指定数据库列类型
func (BigInt) GormDataType() string {
	return "decimal(65,0)"
}
