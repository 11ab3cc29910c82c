package domain

import "time"

type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

func (c AlertCondition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

type PriceAlert struct {
	ID        string         `json:"id"`
	Pair      string         `json:"pair"`
	Price     float64        `json:"price"`
	Condition AlertCondition `json:"condition"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
}
