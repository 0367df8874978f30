package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanBatchTransitionTo(t *testing.T) {
	allowed := [][2]string{
		{BatchStatusDraft, BatchStatusPosted},
		{BatchStatusDraft, BatchStatusCancelled},
		{BatchStatusPosted, BatchStatusDisbursed},
		{BatchStatusPosted, BatchStatusCancelled},
		{BatchStatusDisbursed, BatchStatusReconciled},
	}
	for _, tc := range allowed {
		assert.True(t, CanBatchTransitionTo(tc[0], tc[1]), "%s -> %s", tc[0], tc[1])
	}

	denied := [][2]string{
		{BatchStatusDraft, BatchStatusDisbursed},     // 不能跳过 POSTED
		{BatchStatusDisbursed, BatchStatusCancelled}, // 已放款不可作废
		{BatchStatusReconciled, BatchStatusDraft},    // 终态不可回退
		{BatchStatusCancelled, BatchStatusPosted},    // 终态不可回退
		{BatchStatusDraft, BatchStatusDraft},
	}
	for _, tc := range denied {
		assert.False(t, CanBatchTransitionTo(tc[0], tc[1]), "%s -> %s", tc[0], tc[1])
	}
}
