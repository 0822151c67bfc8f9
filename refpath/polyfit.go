package refpath

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CurveDegree is the degree used for reference curves fed to the optimizer.
// A cubic follows the lane curvature changes a short horizon can react to
// without chasing waypoint noise.
const CurveDegree = 3

// ErrInsufficientData is returned when fewer than degree+1 points are
// available for a fit.
var ErrInsufficientData = errors.New("too few waypoints for polynomial fit")

// Polynomial holds coefficients in ascending degree,
// f(x) = p[0] + p[1]*x + p[2]*x^2 + ...
type Polynomial []float64

// Eval returns f(x), evaluated by Horner's rule.
func (p Polynomial) Eval(x float64) float64 {
	result := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		result = result*x + p[i]
	}
	return result
}

// Derivative returns the coefficients of f'(x).
func (p Polynomial) Derivative() Polynomial {
	if len(p) <= 1 {
		return Polynomial{0}
	}
	d := make(Polynomial, len(p)-1)
	for i := 1; i < len(p); i++ {
		d[i-1] = float64(i) * p[i]
	}
	return d
}

// Fit least-squares fits a polynomial of the given degree to the points via
// a QR decomposition of the Vandermonde matrix. At least degree+1 points are
// required; with exactly that many the fit interpolates them.
func Fit(points []r2.Point, degree int) (Polynomial, error) {
	if degree < 1 {
		return nil, errors.Errorf("fit degree must be at least 1, got %d", degree)
	}
	if len(points) < degree+1 {
		return nil, errors.Wrapf(ErrInsufficientData,
			"degree %d fit needs at least %d points, got %d", degree, degree+1, len(points))
	}

	vand := mat.NewDense(len(points), degree+1, nil)
	rhs := mat.NewVecDense(len(points), nil)
	for i, pt := range points {
		v := 1.0
		for j := 0; j <= degree; j++ {
			vand.Set(i, j, v)
			v *= pt.X
		}
		rhs.SetVec(i, pt.Y)
	}

	var qr mat.QR
	qr.Factorize(vand)
	coeffs := mat.NewVecDense(degree+1, nil)
	if err := qr.SolveVecTo(coeffs, false, rhs); err != nil {
		return nil, errors.Wrap(err, "polynomial fit failed")
	}

	fitted := make(Polynomial, degree+1)
	copy(fitted, coeffs.RawVector().Data)
	return fitted, nil
}
