package domain

import "github.com/shopspring/decimal"

// BCHDecimalPlaces is the precision of the smallest BCH unit (1 satoshi).
const BCHDecimalPlaces = 8

// FloorCrypto truncates an amount down to the satoshi precision. Quoted
// prices always round in the customer's favor.
func FloorCrypto(d decimal.Decimal) decimal.Decimal {
	return d.RoundDown(BCHDecimalPlaces)
}

// SatsToBCH converts a satoshi amount into a decimal BCH amount.
func SatsToBCH(sats int64) decimal.Decimal {
	return decimal.New(sats, -BCHDecimalPlaces)
}
