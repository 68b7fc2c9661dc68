package preprocess

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"gonum.org/v1/gonum/mat"
	govaluate "gopkg.in/Knetic/govaluate.v3"

	"github.com/martinhoang/urdf2mjcf/pkg/xmltree"
)

// Inertial frame errors. These are hard errors: a link that declares a
// rotated inertial frame must either be rewritten exactly or stop the run.
var (
	ErrIncompleteTensor = errors.New("inertia tensor is missing components")
	ErrBadRotation      = errors.New("rotation is not orthonormal")
)

// rpyZeroTol is the tolerance below which an orientation counts as zero.
const rpyZeroTol = 1e-9

// tensorKeys are the six symmetric tensor attributes in canonical order.
var tensorKeys = [6]string{"ixx", "ixy", "ixz", "iyy", "iyz", "izz"}

// normalizeInertialFrames rewrites every inertial block with a non-zero
// orientation into a zero-orientation equivalent via I' = R*I*Rt. Blocks that
// are already zero-oriented are left untouched, so the pass is idempotent.
func normalizeInertialFrames(root *xmltree.Element) error {
	for _, link := range root.FindAll("link") {
		inertial := link.Child("inertial")
		if inertial == nil {
			continue
		}
		if err := normalizeInertial(inertial); err != nil {
			name := link.AttrDefault("name", "?")
			return fmt.Errorf("link %q: %w", name, err)
		}
	}
	return nil
}

func normalizeInertial(inertial *xmltree.Element) error {
	origin := inertial.Child("origin")
	if origin == nil {
		return nil
	}
	rpyAttr, ok := origin.Attr("rpy")
	if !ok {
		return nil
	}
	rpy, err := parseVec3Expr(rpyAttr)
	if err != nil {
		return fmt.Errorf("inertial origin rpy %q: %w", rpyAttr, err)
	}
	if math.Abs(rpy[0]) <= rpyZeroTol && math.Abs(rpy[1]) <= rpyZeroTol && math.Abs(rpy[2]) <= rpyZeroTol {
		return nil
	}

	inertia := inertial.Child("inertia")
	if inertia == nil {
		return fmt.Errorf("%w: no inertia element", ErrIncompleteTensor)
	}
	tensor, err := readTensor(inertia)
	if err != nil {
		return err
	}

	R := rotationZYX(rpy[0], rpy[1], rpy[2])
	if err := checkOrthonormal(R); err != nil {
		return err
	}

	// I' = R * I * Rt
	var tmp, rotated mat.Dense
	tmp.Mul(R, tensor)
	rotated.Mul(&tmp, R.T())

	writeTensor(inertia, &rotated)
	origin.SetAttr("rpy", "0 0 0")
	return nil
}

// readTensor assembles the symmetric 3x3 tensor from the six stored
// components. All six must be present.
func readTensor(inertia *xmltree.Element) (*mat.Dense, error) {
	var v [6]float64
	for i, key := range tensorKeys {
		s, ok := inertia.Attr(key)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrIncompleteTensor, key)
		}
		val, err := evalExpr(s)
		if err != nil {
			return nil, fmt.Errorf("inertia %s=%q: %w", key, s, err)
		}
		v[i] = val
	}
	ixx, ixy, ixz, iyy, iyz, izz := v[0], v[1], v[2], v[3], v[4], v[5]
	return mat.NewDense(3, 3, []float64{
		ixx, ixy, ixz,
		ixy, iyy, iyz,
		ixz, iyz, izz,
	}), nil
}

func writeTensor(inertia *xmltree.Element, t mat.Matrix) {
	inertia.SetAttr("ixx", fmt.Sprintf("%.10g", t.At(0, 0)))
	inertia.SetAttr("ixy", fmt.Sprintf("%.10g", t.At(0, 1)))
	inertia.SetAttr("ixz", fmt.Sprintf("%.10g", t.At(0, 2)))
	inertia.SetAttr("iyy", fmt.Sprintf("%.10g", t.At(1, 1)))
	inertia.SetAttr("iyz", fmt.Sprintf("%.10g", t.At(1, 2)))
	inertia.SetAttr("izz", fmt.Sprintf("%.10g", t.At(2, 2)))
}

// rotationZYX builds R = Rz(yaw) * Ry(pitch) * Rx(roll).
func rotationZYX(roll, pitch, yaw float64) *mat.Dense {
	cr, sr := math.Cos(roll), math.Sin(roll)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cy, sy := math.Cos(yaw), math.Sin(yaw)

	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cr, -sr,
		0, sr, cr,
	})
	ry := mat.NewDense(3, 3, []float64{
		cp, 0, sp,
		0, 1, 0,
		-sp, 0, cp,
	})
	rz := mat.NewDense(3, 3, []float64{
		cy, -sy, 0,
		sy, cy, 0,
		0, 0, 1,
	})

	var tmp, r mat.Dense
	tmp.Mul(rz, ry)
	r.Mul(&tmp, rx)
	return &r
}

// checkOrthonormal verifies R*Rt = Id within tolerance.
func checkOrthonormal(R mat.Matrix) error {
	var p mat.Dense
	p.Mul(R, R.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if math.Abs(p.At(i, j)-want) > rpyZeroTol {
				return fmt.Errorf("%w: (RRt)[%d,%d] = %g", ErrBadRotation, i, j, p.At(i, j))
			}
		}
	}
	return nil
}

// evalExpr evaluates one numeric field that may carry a symbolic expression,
// e.g. "1.5", "-pi/4" or "${pi/2}". The constant pi is bound.
func evalExpr(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		s = s[2 : len(s)-1]
	}
	expr, err := govaluate.NewEvaluableExpression(s)
	if err != nil {
		return 0, err
	}
	result, err := expr.Evaluate(map[string]interface{}{"pi": math.Pi})
	if err != nil {
		return 0, err
	}
	f, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q is not numeric", s)
	}
	return f, nil
}

// exprSpanPattern matches one braced expression span.
var exprSpanPattern = regexp.MustCompile(`\$\{[^}]*\}`)

// parseVec3Expr evaluates a whitespace-separated triple of numeric fields.
// Braced spans are evaluated before splitting, so "${pi / 2}" may carry
// spaces inside the braces.
func parseVec3Expr(s string) ([3]float64, error) {
	var out [3]float64
	var spanErr error
	s = exprSpanPattern.ReplaceAllStringFunc(s, func(span string) string {
		v, err := evalExpr(span)
		if err != nil {
			if spanErr == nil {
				spanErr = err
			}
			return span
		}
		return fmt.Sprintf("%.17g", v)
	})
	if spanErr != nil {
		return out, spanErr
	}
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return out, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}
	for i, f := range fields {
		v, err := evalExpr(f)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
