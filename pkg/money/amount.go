package money

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ============================================================================
// 金额类型（任意精度整数，单位：派士/paise）
// ============================================================================
//
// 【为什么不用 int64 或 float64？】
//
// 1. float64 精度只有 53 位，批次汇总超过 2^53 派士后会丢失精度，
//    对账时总额对不上 —— 这是资金系统的致命缺陷
// 2. 转账、批次的总额是多笔付款的累加，理论上没有上限
//
// 所以金额全链路统一使用 big.Int：
//   - 数据库列类型 DECIMAL(65,0)，按十进制字符串读写
//   - JSON 序列化为十进制字符串（避免前端 JS Number 精度丢失）
//   - 任何阶段都不允许转成浮点数
//
// ============================================================================

var ErrInvalidAmount = errors.New("金额格式不合法")

// Amount 任意精度整数金额（最小货币单位）
type Amount struct {
	i big.Int
}

// NewFromInt64 从 int64 构造金额
func NewFromInt64(v int64) *Amount {
	a := &Amount{}
	a.i.SetInt64(v)
	return a
}

// Zero 零金额
func Zero() *Amount {
	return &Amount{}
}

// Parse 解析十进制字符串
func Parse(s string) (*Amount, error) {
	a := &Amount{}
	if _, ok := a.i.SetString(strings.TrimSpace(s), 10); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return a, nil
}

// Add 累加 b 到当前金额
func (a *Amount) Add(b *Amount) {
	a.i.Add(&a.i, &b.i)
}

// Copy 深拷贝
//
// 【注意】big.Int 内部持有切片，结构体浅拷贝后再原地修改会互相影响，
// 凡是要存入模型或继续累加的金额，必须先 Copy
func (a *Amount) Copy() *Amount {
	out := &Amount{}
	out.i.Set(&a.i)
	return out
}

// Cmp 比较，返回 -1/0/1
func (a *Amount) Cmp(b *Amount) int {
	return a.i.Cmp(&b.i)
}

// Sign 符号，返回 -1/0/1
func (a *Amount) Sign() int {
	return a.i.Sign()
}

// String 十进制字符串
func (a *Amount) String() string {
	return a.i.String()
}

// Value 实现 driver.Valuer，按十进制字符串写库
func (a Amount) Value() (driver.Value, error) {
	return a.i.String(), nil
}

// Scan 实现 sql.Scanner
// MySQL DECIMAL 返回 []byte；SQLite 可能返回 int64（测试场景）
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		a.i.SetInt64(0)
		return nil
	case int64:
		a.i.SetInt64(v)
		return nil
	case []byte:
		if _, ok := a.i.SetString(string(v), 10); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, string(v))
		}
		return nil
	case string:
		if _, ok := a.i.SetString(v, 10); !ok {
			return fmt.Errorf("%w: %q", ErrInvalidAmount, v)
		}
		return nil
	default:
		return fmt.Errorf("%w: 不支持的类型 %T", ErrInvalidAmount, src)
	}
}

// MarshalJSON 序列化为十进制字符串
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.i.String() + `"`), nil
}

// UnmarshalJSON 支持字符串和裸数字两种形式
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		return nil
	}
	if _, ok := a.i.SetString(s, 10); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(data))
	}
	return nil
}
