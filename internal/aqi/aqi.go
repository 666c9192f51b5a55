// Package aqi converts pollutant concentrations to the US EPA Air Quality Index.
package aqi

import "math"

// MaxIndex is the highest index value; concentrations above the top band saturate here.
const MaxIndex = 500

// Breakpoint is one band of a breakpoint table. Concentrations between
// ConcLow and ConcHigh map linearly onto IndexLow..IndexHigh.
type Breakpoint struct {
	ConcLow   float64
	ConcHigh  float64
	IndexLow  int
	IndexHigh int
}

// Table is an ordered, contiguous set of breakpoint bands for one pollutant.
type Table struct {
	// Name identifies the pollutant, e.g. "pm25".
	Name string

	// FloorToTenth truncates the concentration to one decimal place before
	// the band lookup (the EPA reporting convention for PM2.5).
	FloorToTenth bool

	Bands []Breakpoint
}

// PM25Table holds the EPA breakpoints for PM2.5 in µg/m³.
var PM25Table = Table{
	Name:         "pm25",
	FloorToTenth: true,
	Bands: []Breakpoint{
		{ConcLow: 0.0, ConcHigh: 12.0, IndexLow: 0, IndexHigh: 50},
		{ConcLow: 12.1, ConcHigh: 35.4, IndexLow: 51, IndexHigh: 100},
		{ConcLow: 35.5, ConcHigh: 55.4, IndexLow: 101, IndexHigh: 150},
		{ConcLow: 55.5, ConcHigh: 150.4, IndexLow: 151, IndexHigh: 200},
		{ConcLow: 150.5, ConcHigh: 250.4, IndexLow: 201, IndexHigh: 300},
		{ConcLow: 250.5, ConcHigh: 500.4, IndexLow: 301, IndexHigh: 500},
	},
}

// PM10Table holds the EPA breakpoints for PM10 in µg/m³.
var PM10Table = Table{
	Name: "pm10",
	Bands: []Breakpoint{
		{ConcLow: 0, ConcHigh: 54, IndexLow: 0, IndexHigh: 50},
		{ConcLow: 55, ConcHigh: 154, IndexLow: 51, IndexHigh: 100},
		{ConcLow: 155, ConcHigh: 254, IndexLow: 101, IndexHigh: 150},
		{ConcLow: 255, ConcHigh: 354, IndexLow: 151, IndexHigh: 200},
		{ConcLow: 355, ConcHigh: 424, IndexLow: 201, IndexHigh: 300},
		{ConcLow: 425, ConcHigh: 604, IndexLow: 301, IndexHigh: 500},
	},
}

// IndexFromConcentration maps a concentration onto the index scale of table.
// A nil, negative or NaN concentration yields 0. Values above the top band
// saturate at the top band's IndexHigh.
//
// Bands are matched on [ConcLow, next band's ConcLow) so that values falling
// between two published bands (for example PM10 = 54.5 up to 54.99)
// interpolate on the lower band. A strict per-band [ConcLow, ConcHigh] match
// would score those gaps as 0, which reads as clean air.
func IndexFromConcentration(table Table, concentration *float64) int {
	if concentration == nil || len(table.Bands) == 0 {
		return 0
	}

	c := *concentration
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if table.FloorToTenth {
		c = math.Floor(c*10) / 10
	}

	top := table.Bands[len(table.Bands)-1]
	if c > top.ConcHigh {
		return top.IndexHigh
	}

	for i, band := range table.Bands {
		if c < band.ConcLow {
			continue
		}
		if i+1 < len(table.Bands) && c >= table.Bands[i+1].ConcLow {
			continue
		}
		return interpolate(c, band)
	}

	return 0
}

// CombinedIndex returns the worse of the PM2.5 and PM10 indices.
// A nil pollutant contributes 0.
func CombinedIndex(pm25, pm10 *float64) int {
	return max(
		IndexFromConcentration(PM25Table, pm25),
		IndexFromConcentration(PM10Table, pm10),
	)
}

func interpolate(c float64, b Breakpoint) int {
	span := b.ConcHigh - b.ConcLow
	if span <= 0 {
		return b.IndexLow
	}
	idx := float64(b.IndexLow) + float64(b.IndexHigh-b.IndexLow)*(c-b.ConcLow)/span
	return int(math.Round(idx))
}
