package core

import "time"

// Currency support is deliberately pinned to USD; every provider rejects
// anything else with KindUnsupportedCurrency.
const CurrencyUSD = "USD"

type (
	// Agent is an economic actor with a starting balance in minor units.
	Agent struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		StartingMinor int64  `json:"startingMinor"`
		Currency      string `json:"currency"`
	}

	// Expense is an immutable spending event. AgentName is denormalized at
	// read time via the agent roster; it is never stored independently.
	Expense struct {
		ID          string    `json:"id"`
		AgentID     string    `json:"agentId"`
		AgentName   string    `json:"agentName"`
		Category    string    `json:"category"`
		Vendor      string    `json:"vendor"`
		Description string    `json:"description"`
		AmountMinor int64     `json:"amountMinor"`
		OccurredAt  time.Time `json:"occurredAt"`
	}
)
