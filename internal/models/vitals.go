package models

import "time"

// DataKind identifies one of the data streams a source can provide.
type DataKind string

const (
	KindSleep     DataKind = "sleep"
	KindSpO2      DataKind = "spo2"
	KindHeartRate DataKind = "heart_rate"
)

// Kinds lists all data kinds in processing order.
func Kinds() []DataKind {
	return []DataKind{KindSleep, KindSpO2, KindHeartRate}
}

// Vitals is one normalized sensor reading.
type Vitals struct {
	Timestamp time.Time
	Kind      DataKind
	Value     int
}
