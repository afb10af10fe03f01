package service

import (
	"math"

	"github.com/lp-portfolio/internal/models"
)

const secondsPerYear = 365.25 * 24 * 60 * 60

// CalculateImpermanentLoss applies the constant-product divergence formula.
// Zero initial prices yield a zero result; any non-finite field becomes 0.
func CalculateImpermanentLoss(initial, current models.TokenPrices, amounts models.AmountPair) models.ImpermanentLoss {
	if initial.Token0 == 0 || initial.Token1 == 0 {
		return models.ImpermanentLoss{}
	}

	ratioInitial := initial.Token0 / initial.Token1
	ratioCurrent := current.Token0 / current.Token1
	ratioChange := ratioCurrent / ratioInitial

	holdValue := amounts.Token0*current.Token0 + amounts.Token1*current.Token1

	ilMultiplier := 2 * math.Sqrt(ratioChange) / (1 + ratioChange)
	initialValue := amounts.Token0*initial.Token0 + amounts.Token1*initial.Token1
	lpValue := initialValue * ilMultiplier

	ilValue := lpValue - holdValue
	ilPercent := ilValue / holdValue * 100

	return models.ImpermanentLoss{
		Value:     finiteOrZero(ilValue),
		Percent:   finiteOrZero(ilPercent),
		HoldValue: finiteOrZero(holdValue),
		LPValue:   finiteOrZero(lpValue),
	}
}

// CalculateAPY annualizes the return between first and last interaction
func CalculateAPY(initialValue, finalValue float64, first, last *int64) float64 {
	if first == nil || last == nil || initialValue == 0 {
		return 0
	}
	years := float64(*last-*first) / secondsPerYear
	if years == 0 {
		return 0
	}
	apy := (math.Pow(finalValue/initialValue, 1/years) - 1) * 100
	return finiteOrZero(apy)
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
