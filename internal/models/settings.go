package models

// CoinSettings are the read-only economic parameters of a ledger
type CoinSettings struct {
	MinimumFee   int64 `yaml:"minimum_fee"`
	MaximumFee   int64 `yaml:"maximum_fee"`   // 0 disables the upper bound
	MiningReward int64 `yaml:"mining_reward"` // cap on a block's reward transaction
}

// DefaultCoinSettings returns the settings used when none are configured
func DefaultCoinSettings() CoinSettings {
	return CoinSettings{
		MinimumFee:   1,
		MaximumFee:   0,
		MiningReward: 50,
	}
}

func (s CoinSettings) feeInRange(fee int64) bool {
	if fee < s.MinimumFee {
		return false
	}
	return s.MaximumFee == 0 || fee <= s.MaximumFee
}
