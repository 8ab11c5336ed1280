package booking

import "time"

// Price charges the hourly rate pro rata by the minute, rounded to the
// nearest cent.
func Price(pricePerHourCents int64, length time.Duration) int64 {
	minutes := int64(length / time.Minute)
	if minutes <= 0 || pricePerHourCents <= 0 {
		return 0
	}
	return (pricePerHourCents*minutes + 30) / 60
}

// Discount applies a percentage discount, rounded to the nearest cent.
func Discount(cents, percentage int64) int64 {
	switch {
	case percentage <= 0:
		return cents
	case percentage >= 100:
		return 0
	}
	return (cents*(100-percentage) + 50) / 100
}
