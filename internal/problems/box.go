package problems

// Box is the first example of the DOT manual: size an open-top box of height
// h, width w and depth d for minimum material, subject to a volume of at
// least 2.
//
//	f(h, w, d) = 2(hw + hd + 2wd) + 1.25h/12
//	g(h, w, d) = 1 - hwd/2 <= 0
func Box(x []float64, obj *float64, g []float64, _ []float64) {
	h, w, d := x[0], x[1], x[2]
	*obj = 2.0*(h*w+h*d+2.0*w*d) + 1.25*h/12.0
	g[0] = 1.0 - h*w*d/2.0
}

// Paraboloid is sum((x_i - i - 1)^2), unconstrained, minimum at (1, 2, ...).
func Paraboloid(x []float64, obj *float64, _ []float64, _ []float64) {
	sum := 0.0
	for i, v := range x {
		d := v - float64(i+1)
		sum += d * d
	}
	*obj = sum
}

// Disk minimizes x + y inside the unit disk; the optimum is -(1, 1)/sqrt(2).
func Disk(x []float64, obj *float64, g []float64, _ []float64) {
	*obj = x[0] + x[1]
	g[0] = x[0]*x[0] + x[1]*x[1] - 1
}

// Constant returns param[0] everywhere (0 without params). DOT finds no
// improving direction and stops at the start.
func Constant(_ []float64, obj *float64, g []float64, param []float64) {
	*obj = 0
	if len(param) > 0 {
		*obj = param[0]
	}
	for i := range g {
		g[i] = -1
	}
}

func init() {
	register(Definition{
		Name:        "box",
		Description: "open-top box of minimum material with volume >= 2",
		Constraints: 1,
		Start:       fill(3, 1.0),
		Lower:       fill(3, 0.001),
		Upper:       fill(3, 100.0),
		Eval:        Box,
	})
	register(Definition{
		Name:        "paraboloid",
		Description: "unconstrained shifted paraboloid in two variables",
		Start:       fill(2, 0),
		Lower:       fill(2, -10),
		Upper:       fill(2, 10),
		Eval:        Paraboloid,
	})
	register(Definition{
		Name:        "disk",
		Description: "minimize x + y inside the unit disk",
		Constraints: 1,
		Start:       fill(2, 0.5),
		Lower:       fill(2, -2),
		Upper:       fill(2, 2),
		Eval:        Disk,
	})
	register(Definition{
		Name:        "constant",
		Description: "constant objective; stops without moving",
		Start:       fill(2, 0.5),
		Lower:       fill(2, 0),
		Upper:       fill(2, 1),
		Eval:        Constant,
	})
}
