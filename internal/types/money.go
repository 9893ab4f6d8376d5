// README: Common money value object used across modules.
package types

// Money carries an amount in the currency's major unit (whole naira).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
