package geodesy

import (
	"fmt"
	"math"
)

// WGS84 ellipsoid and UTM constants.
const (
	semiMajorAxis  = 6378137.0
	flattening     = 1 / 298.257223563
	scaleFactor    = 0.9996
	falseEasting   = 500000.0
	falseNorthingS = 10000000.0
)

var (
	eccSq      = flattening * (2 - flattening)
	eccPrimeSq = eccSq / (1 - eccSq)
)

// Zone identifies a UTM zone and hemisphere.
type Zone struct {
	Number int
	North  bool
}

// ZoneFor returns the standard UTM zone containing lon/lat, including the
// Norway and Svalbard exceptions.
func ZoneFor(lon, lat float64) Zone {
	lon = normalizeLon(lon)
	number := int(math.Floor((lon+180)/6)) + 1
	switch {
	case lat >= 56 && lat < 64 && lon >= 3 && lon < 12:
		number = 32
	case lat >= 72 && lat < 84:
		switch {
		case lon >= 0 && lon < 9:
			number = 31
		case lon >= 9 && lon < 21:
			number = 33
		case lon >= 21 && lon < 33:
			number = 35
		case lon >= 33 && lon < 42:
			number = 37
		}
	}
	if number < 1 {
		number = 1
	}
	if number > 60 {
		number = 60
	}
	return Zone{Number: number, North: lat >= 0}
}

// CentralMeridian returns the zone's central meridian in degrees.
func (z Zone) CentralMeridian() float64 {
	return float64(z.Number-1)*6 - 180 + 3
}

// EPSG returns the WGS84 / UTM EPSG code for the zone.
func (z Zone) EPSG() int {
	if z.North {
		return 32600 + z.Number
	}
	return 32700 + z.Number
}

func (z Zone) String() string {
	if z.North {
		return fmt.Sprintf("%dN", z.Number)
	}
	return fmt.Sprintf("%dS", z.Number)
}

// Valid reports whether the zone number is in range.
func (z Zone) Valid() bool {
	return z.Number >= 1 && z.Number <= 60
}

// UTM is a transverse Mercator projection pinned to one zone.
type UTM struct {
	zone    Zone
	lambda0 float64
}

// NewUTM returns the projection for zone.
func NewUTM(zone Zone) (UTM, error) {
	if !zone.Valid() {
		return UTM{}, fmt.Errorf("invalid UTM zone %d", zone.Number)
	}
	return UTM{zone: zone, lambda0: radians(zone.CentralMeridian())}, nil
}

// Zone returns the projection's zone.
func (p UTM) Zone() Zone {
	return p.zone
}

// Forward projects lon/lat degrees to easting/northing meters.
func (p UTM) Forward(lon, lat float64) (easting, northing float64) {
	phi := radians(lat)
	lambda := radians(lon)

	sinPhi, cosPhi := math.Sincos(phi)
	tanPhi := math.Tan(phi)
	n := semiMajorAxis / math.Sqrt(1-eccSq*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := eccPrimeSq * cosPhi * cosPhi
	a := wrapAngle(lambda-p.lambda0) * cosPhi
	m := meridianArc(phi)

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x := scaleFactor * n * (a +
		(1-t+c)*a3/6 +
		(5-18*t+t*t+72*c-58*eccPrimeSq)*a5/120)
	y := scaleFactor * (m + n*tanPhi*(a2/2+
		(5-t+9*c+4*c*c)*a4/24+
		(61-58*t+t*t+600*c-330*eccPrimeSq)*a6/720))

	easting = x + falseEasting
	northing = y
	if !p.zone.North {
		northing += falseNorthingS
	}
	return easting, northing
}

// Inverse unprojects easting/northing meters to lon/lat degrees.
func (p UTM) Inverse(easting, northing float64) (lon, lat float64) {
	x := easting - falseEasting
	y := northing
	if !p.zone.North {
		y -= falseNorthingS
	}

	m := y / scaleFactor
	e4 := eccSq * eccSq
	e6 := e4 * eccSq
	mu := m / (semiMajorAxis * (1 - eccSq/4 - 3*e4/64 - 5*e6/256))

	root := math.Sqrt(1 - eccSq)
	e1 := (1 - root) / (1 + root)
	e1Sq := e1 * e1
	e1Cu := e1Sq * e1
	e1Qu := e1Cu * e1
	phi1 := mu +
		(3*e1/2-27*e1Cu/32)*math.Sin(2*mu) +
		(21*e1Sq/16-55*e1Qu/32)*math.Sin(4*mu) +
		(151*e1Cu/96)*math.Sin(6*mu) +
		(1097*e1Qu/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	tanPhi1 := math.Tan(phi1)
	c1 := eccPrimeSq * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	denom := 1 - eccSq*sinPhi1*sinPhi1
	n1 := semiMajorAxis / math.Sqrt(denom)
	r1 := semiMajorAxis * (1 - eccSq) / math.Pow(denom, 1.5)
	d := x / (n1 * scaleFactor)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	phi := phi1 - (n1*tanPhi1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*eccPrimeSq)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*eccPrimeSq-3*c1*c1)*d6/720)
	lambda := p.lambda0 + (d-
		(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*eccPrimeSq+24*t1*t1)*d5/120)/cosPhi1

	return normalizeLon(degrees(lambda)), degrees(phi)
}

func meridianArc(phi float64) float64 {
	e2 := eccSq
	e4 := e2 * e2
	e6 := e4 * e2
	return semiMajorAxis * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func wrapAngle(rad float64) float64 {
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	for rad < -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}

func normalizeLon(lon float64) float64 {
	for lon >= 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
