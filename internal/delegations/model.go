package delegations

import (
	"strings"
	"time"
)

// Status of a delegation. Revoked and expired delegations are kept for history.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
	StatusExpired Status = "EXPIRED"
)

// Key uniquely identifies a delegation.
type Key struct {
	DelegatorAddress string
	DAOGovernor      string
	ChainID          int64
}

// Normalized lowercases the addresses so lookups are case-insensitive.
func (k Key) Normalized() Key {
	return Key{
		DelegatorAddress: strings.ToLower(strings.TrimSpace(k.DelegatorAddress)),
		DAOGovernor:      strings.ToLower(strings.TrimSpace(k.DAOGovernor)),
		ChainID:          k.ChainID,
	}
}

// Delegation is a standing authorization from a wallet to the voting agent.
type Delegation struct {
	ID               string    `json:"id"`
	DelegatorAddress string    `json:"delegatorAddress"`
	DAOGovernor      string    `json:"daoGovernor"`
	ChainID          int64     `json:"chainId"`
	RiskThreshold    float64   `json:"riskThreshold"`
	RequiresApproval bool      `json:"requiresApproval"`
	Status           Status    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Key returns the delegation's identity.
func (d Delegation) Key() Key {
	return Key{DelegatorAddress: d.DelegatorAddress, DAOGovernor: d.DAOGovernor, ChainID: d.ChainID}
}
