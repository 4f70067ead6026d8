// Package geo converts between on-chain parcel geometry (integer microdegrees
// and centimeters) and display coordinates in decimal degrees.
package geo

import "math"

const (
	// CmPerDegreeLat is the length of one degree of latitude in centimeters.
	CmPerDegreeLat = 11_132_000

	microPerDegree = 1e6

	// MinDisplaySizeDeg keeps small parcels clickable on the map.
	MinDisplaySizeDeg = 0.003
)

// LatLng is a (latitude, longitude) pair in decimal degrees.
type LatLng [2]float64

func (p LatLng) Lat() float64 { return p[0] }
func (p LatLng) Lng() float64 { return p[1] }

// MicroToDegrees converts an on-chain microdegree value.
func MicroToDegrees(micro int32) float64 {
	return float64(micro) / microPerDegree
}

// DegreesToMicro rounds a decimal-degree value to the nearest microdegree.
func DegreesToMicro(deg float64) int32 {
	return int32(math.Round(deg * microPerDegree))
}

func CmToLatDeg(cm float64) float64 {
	return cm / CmPerDegreeLat
}

// CmToLngDeg depends on latitude because meridians converge toward the poles.
func CmToLngDeg(cm, latDeg float64) float64 {
	return cm / (CmPerDegreeLat * math.Cos(latDeg*math.Pi/180))
}

func LatDegToCm(deg float64) float64 {
	return deg * CmPerDegreeLat
}

func LngDegToCm(deg, latDeg float64) float64 {
	return deg * CmPerDegreeLat * math.Cos(latDeg*math.Pi/180)
}

// Corners returns the parcel polygon starting at the south-west anchor and
// going counter-clockwise: SW, NW, NE, SE.
func Corners(latDeg, lngDeg float64, widthCm, heightCm uint32) [4]LatLng {
	return box(latDeg, lngDeg, CmToLatDeg(float64(heightCm)), CmToLngDeg(float64(widthCm), latDeg))
}

// Footprint is the display geometry of a parcel.
type Footprint struct {
	Corners [4]LatLng
	Center  LatLng
	AreaM2  float64
}

// DisplayFootprint builds the map polygon for on-chain geometry. Each side is
// at least MinDisplaySizeDeg wide; the area always reflects the real size.
func DisplayFootprint(latMicro, lngMicro int32, widthCm, heightCm uint32) Footprint {
	lat := MicroToDegrees(latMicro)
	lng := MicroToDegrees(lngMicro)
	hDeg := math.Max(CmToLatDeg(float64(heightCm)), MinDisplaySizeDeg)
	wDeg := math.Max(CmToLngDeg(float64(widthCm), lat), MinDisplaySizeDeg)

	return Footprint{
		Corners: box(lat, lng, hDeg, wDeg),
		Center:  LatLng{lat + hDeg/2, lng + wDeg/2},
		AreaM2:  AreaM2(widthCm, heightCm),
	}
}

// AreaM2 converts a centimeter rectangle to square meters.
func AreaM2(widthCm, heightCm uint32) float64 {
	return float64(widthCm) * float64(heightCm) / 10_000
}

// SizeCm is the inverse of Corners for editing: given two opposite corners
// it returns the parcel size in whole centimeters.
func SizeCm(sw, ne LatLng) (widthCm, heightCm uint32) {
	h := LatDegToCm(ne.Lat() - sw.Lat())
	w := LngDegToCm(ne.Lng()-sw.Lng(), sw.Lat())
	return uint32(math.Round(math.Abs(w))), uint32(math.Round(math.Abs(h)))
}

func box(lat, lng, hDeg, wDeg float64) [4]LatLng {
	return [4]LatLng{
		{lat, lng},
		{lat + hDeg, lng},
		{lat + hDeg, lng + wDeg},
		{lat, lng + wDeg},
	}
}
