// Copyright 2026 The FleetSync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package geo is the stateless proximity engine: great-circle distance,
// constant-speed ETA, and display formatting for distances and GPS accuracy.
package geo

import (
	"fmt"
	"math"
)

// Mean Earth radius in kilometers.
const earthRadiusKm = 6371.0

// Average road speed assumed by ETA. Route-agnostic on purpose: there is no
// road-network awareness anywhere in this engine, so the estimate is a known
// approximation, not a bug.
const avgSpeedKmh = 30.0

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Distance returns the haversine great-circle distance between a and b in
// kilometers, rounded to the nearest meter (three decimal places of km).
// Symmetric: Distance(a, b) == Distance(b, a).
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	km := earthRadiusKm * c
	return math.Round(km*1000) / 1000
}

// ETA renders a naive arrival estimate at 30 km/h as whole minutes;
// sub-minute results render as "< 1 min".
func ETA(distanceKm float64) string {
	minutes := distanceKm / avgSpeedKmh * 60
	if minutes < 1 {
		return "< 1 min"
	}
	return fmt.Sprintf("%d min", int(math.Round(minutes)))
}

// FormatDistance renders a distance for display. Distances under 2 km show
// as integer meters, with qualitative hints for the last few meters;
// 2 km and above show as kilometers to two decimals. The 2000 m boundary is
// exact and one-sided.
func FormatDistance(km float64) string {
	meters := km * 1000
	if meters < 2000 {
		if meters < 2 {
			return "right here"
		}
		if meters < 10 {
			return "very close"
		}
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.2f km", km)
}

// Accuracy classes for a client-reported GPS accuracy radius. Presentation
// only: the location channel passes accuracy through untouched and nothing
// downstream treats the class as a correctness input.
const (
	AccuracyHigh    = "high"    // radius of 20 m or less
	AccuracyCoarse  = "coarse"  // radius between 20 m and 500 m
	AccuracyUnknown = "unknown" // missing, non-positive or implausibly large
)

// ClassifyAccuracy buckets an accuracy radius in meters.
func ClassifyAccuracy(meters float64) string {
	switch {
	case meters > 0 && meters <= 20:
		return AccuracyHigh
	case meters > 20 && meters <= 500:
		return AccuracyCoarse
	default:
		return AccuracyUnknown
	}
}
