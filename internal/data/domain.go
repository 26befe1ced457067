// Package data stores and serves per-user location and step time series.
package data

import "time"

// Organisation groups every user bucket.
const Organisation = "GeoApp"

// MaxPointsPerWrite bounds a single PUT body.
const MaxPointsPerWrite = 10000

// Datapoint is one location/steps sample.
type Datapoint struct {
	Latitude  float64   `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64   `json:"longitude" validate:"gte=-180,lte=180"`
	Steps     int       `json:"steps" validate:"gte=0"`
	Timestamp time.Time `json:"timestamp"`
}

// Range filters a query by timestamp. Zero bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

// BucketName returns the bucket holding a user's series.
func BucketName(userID string) string {
	return "user-" + userID
}
