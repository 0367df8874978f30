package service

import (
	"fmt"

	"payoutsystem/internal/model"
	"payoutsystem/pkg/money"
)

// payoutGroup 同一（用户, 银行账户）下待结算付款的归并结果
type payoutGroup struct {
	UserID        int64
	BankAccountID int64
	PayoutIDs     []int64       // 保持遍历顺序，便于排查
	Total         *money.Amount // big.Int 累加，全程不过浮点
}

// groupPayouts 按（用户, 银行账户）归并付款记录
//
// 分组顺序跟随首次出现顺序，保证同一批输入产出稳定的分组序列。
// 未绑卡的记录查询阶段已排除，这里再防御性跳过一次
func groupPayouts(payouts []*model.UserPayout) []*payoutGroup {
	groupsMap := make(map[string]*payoutGroup)
	order := make([]string, 0, len(payouts))

	for _, p := range payouts {
		if p.BankAccountID == nil || *p.BankAccountID == 0 {
			continue
		}

		key := fmt.Sprintf("%d:%d", p.UserID, *p.BankAccountID)
		g, ok := groupsMap[key]
		if !ok {
			g = &payoutGroup{
				UserID:        p.UserID,
				BankAccountID: *p.BankAccountID,
				Total:         money.Zero(),
			}
			groupsMap[key] = g
			order = append(order, key)
		}

		g.PayoutIDs = append(g.PayoutIDs, p.ID)
		g.Total.Add(p.EffectiveAmountPaise())
	}

	groups := make([]*payoutGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, groupsMap[key])
	}
	return groups
}
