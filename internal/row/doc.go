// Package row provides the typed value container returned by every query in
// the database core and accepted by every generated INSERT/UPDATE/DELETE.
//
// A Row maps lowercase field names to Values of one semantic Type (text,
// decimal, date, timestamp). Engines that cannot bind temporal values
// natively use the DateText and TimestampText bridge types, which read and
// write fixed-width ISO text with exactly six fractional digits.
//
// Usage:
//
//	params := row.New().
//	    SetText("user_id", "U001").
//	    SetText("user_nm", "A")
//
//	id := result.Text("user_id")
//	amount, err := result.Decimal("amount")
package row
