package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeParams_Defaults(t *testing.T) {
	p := DefaultTradeParams()
	assert.NoError(t, p.Validate())
	assert.Equal(t, ModeAuto, p.Mode)
	assert.Equal(t, 0.1, p.MaxSolPerTrade)
	assert.Equal(t, 100.0, p.SellPercentage)
}

func TestTradeParams_Validate(t *testing.T) {
	valid := DefaultTradeParams()

	p := valid
	p.Mode = "yolo"
	assert.Error(t, p.Validate())

	p = valid
	p.MaxSolPerTrade = 0
	assert.Error(t, p.Validate())

	p = valid
	p.GasFee = -0.001
	assert.Error(t, p.Validate())

	p = valid
	p.SellDelay = -1
	assert.Error(t, p.Validate())

	p = valid
	p.SellPercentage = 0
	assert.Error(t, p.Validate())

	p = valid
	p.SellPercentage = 101
	assert.Error(t, p.Validate())

	p = valid
	p.Mode = ModeSingle
	p.SellDelay = 0
	assert.NoError(t, p.Validate())
}

func TestTradeStore_SaveLoad(t *testing.T) {
	s := NewTradeStore()
	assert.Equal(t, DefaultTradeParams(), s.Load())

	p := TradeParams{
		Mode:           ModeSingle,
		MaxSolPerTrade: 0.5,
		GasFee:         0.002,
		SellDelay:      5,
		SellPercentage: 50,
	}
	require.NoError(t, s.Save(p))
	assert.Equal(t, p, s.Load())
}

func TestTradeStore_RejectsInvalid(t *testing.T) {
	s := NewTradeStore()

	bad := DefaultTradeParams()
	bad.MaxSolPerTrade = -1
	assert.Error(t, s.Save(bad))

	// Store keeps the previous value.
	assert.Equal(t, DefaultTradeParams(), s.Load())
}
