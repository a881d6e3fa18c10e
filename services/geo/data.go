package geo

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// BoundingBox is an inclusive lat/lon rectangle.
type BoundingBox struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// Contains reports whether p falls inside the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.LatMin && p.Lat <= b.LatMax && p.Lon >= b.LonMin && p.Lon <= b.LonMax
}

// LineSource is a polyline noise source such as a street or freeway.
type LineSource struct {
	Name     string
	Coords   []Point
	Severity float64
}

// PointSource is a point noise source such as a fire station.
type PointSource struct {
	Name     string
	Location Point
	Severity float64
}

// Metro is one covered area with its static noise sources.
type Metro struct {
	Name     string
	Box      BoundingBox
	Streets  []LineSource
	Freeways []LineSource
	Sirens   []PointSource
}

var sanFrancisco = Metro{
	Name: "San Francisco",
	Box:  BoundingBox{LatMin: 37.707, LatMax: 37.83, LonMin: -122.515, LonMax: -122.355},
	Streets: []LineSource{
		{"Van Ness Ave", []Point{{37.7949, -122.4217}, {37.7549, -122.4217}}, 0.9},
		{"Geary Blvd", []Point{{37.7852, -122.5034}, {37.7852, -122.4034}}, 0.85},
		{"19th Avenue", []Point{{37.7815, -122.4759}, {37.7215, -122.4759}}, 0.85},
		{"Mission Street", []Point{{37.7649, -122.4198}, {37.7849, -122.4048}}, 0.75},
		{"Market Street", []Point{{37.7879, -122.4074}, {37.7649, -122.4352}}, 0.8},
		{"Divisadero Street", []Point{{37.7849, -122.4399}, {37.7449, -122.4399}}, 0.65},
		{"Lombard Street (Marina)", []Point{{37.8005, -122.4185}, {37.8005, -122.4485}}, 0.7},
		{"Columbus Avenue", []Point{{37.7987, -122.4078}, {37.8057, -122.4178}}, 0.65},
		{"Folsom Street", []Point{{37.7799, -122.4058}, {37.7639, -122.4198}}, 0.6},
		{"Broadway", []Point{{37.7977, -122.4058}, {37.7977, -122.4258}}, 0.7},
	},
	Freeways: []LineSource{
		{"US-101 (Central)", []Point{{37.7749, -122.4094}, {37.7649, -122.3994}, {37.7549, -122.3894}}, 1.0},
		{"I-280", []Point{{37.7349, -122.4094}, {37.7249, -122.4194}, {37.7149, -122.4294}}, 0.95},
		{"I-80 (Bay Bridge approach)", []Point{{37.7879, -122.3894}, {37.7879, -122.3794}}, 0.95},
	},
	Sirens: []PointSource{
		{"Station 1 (Embarcadero)", Point{37.7949, -122.3934}, 1.0},
		{"Station 2 (Chinatown)", Point{37.7949, -122.4084}, 1.0},
		{"Station 3 (Marina)", Point{37.8004, -122.4354}, 1.0},
		{"Station 7 (Mission)", Point{37.7629, -122.4154}, 1.0},
		{"Station 10 (Potrero)", Point{37.7579, -122.3994}, 1.0},
		{"Station 13 (SOMA)", Point{37.7829, -122.4034}, 1.0},
		{"Station 36 (Castro)", Point{37.7619, -122.4354}, 1.0},
		{"Station 38 (Noe Valley)", Point{37.7519, -122.4324}, 1.0},
	},
}

var newYork = Metro{
	Name: "New York",
	Box:  BoundingBox{LatMin: 40.62, LatMax: 40.80, LonMin: -74.05, LonMax: -73.90},
	Streets: []LineSource{
		{"Broadway (Manhattan)", []Point{{40.7061, -74.0131}, {40.7580, -73.9855}, {40.7831, -73.9712}}, 0.85},
		{"Canal Street", []Point{{40.7195, -74.0066}, {40.7166, -73.9982}, {40.7149, -73.9909}}, 0.9},
		{"Houston Street", []Point{{40.7268, -74.0078}, {40.7227, -73.9952}, {40.7209, -73.9828}}, 0.8},
		{"Bowery", []Point{{40.7149, -73.9974}, {40.7242, -73.9927}, {40.7316, -73.9892}}, 0.75},
		{"Delancey Street", []Point{{40.7188, -73.9989}, {40.7178, -73.9878}, {40.7148, -73.9778}}, 0.85},
		{"Flatbush Avenue", []Point{{40.6905, -73.9764}, {40.6832, -73.9773}, {40.6705, -73.9631}}, 0.8},
		{"Atlantic Avenue (Brooklyn)", []Point{{40.6863, -73.9781}, {40.6848, -73.9685}, {40.6822, -73.9549}}, 0.75},
		{"4th Avenue (Brooklyn)", []Point{{40.6863, -73.9781}, {40.6746, -73.9831}, {40.6656, -73.9880}}, 0.7},
	},
	Freeways: []LineSource{
		{"BQE", []Point{{40.6891, -73.9979}, {40.6938, -73.9923}, {40.6996, -73.9862}, {40.7024, -73.9847}}, 1.0},
		{"FDR Drive", []Point{{40.7096, -73.9752}, {40.7210, -73.9740}, {40.7350, -73.9730}, {40.7550, -73.9660}}, 0.95},
	},
	Sirens: []PointSource{
		{"FDNY Engine 205/Ladder 118 (DUMBO)", Point{40.6988, -73.9872}, 1.0},
		{"FDNY Engine 224 (Brooklyn Heights)", Point{40.6933, -73.9930}, 1.0},
		{"FDNY Engine 229 (Williamsburg)", Point{40.7114, -73.9572}, 1.0},
		{"FDNY Engine 207/Ladder 110 (Fort Greene)", Point{40.6898, -73.9753}, 1.0},
		{"FDNY Engine 33/Ladder 9 (East Village)", Point{40.7274, -73.9876}, 1.0},
		{"FDNY Engine 55 (SoHo)", Point{40.7230, -73.9985}, 1.0},
		{"FDNY Engine 24/Ladder 5 (Chelsea)", Point{40.7395, -73.9998}, 1.0},
		{"FDNY Engine 14 (East Village/Gramercy)", Point{40.7322, -73.9859}, 1.0},
	},
}

// DefaultMetros are the covered areas in lookup order.
var DefaultMetros = []Metro{sanFrancisco, newYork}
