package numeric

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
)

// Quadrature failures. Integrate wraps these, so match with errors.Is.
var (
	ErrSubdivisionLimit = errors.New("maximum number of subdivisions reached")
	ErrRoundoff         = errors.New("roundoff error prevents requested tolerance")
	ErrBadIntegrand     = errors.New("extremely bad integrand behavior")
	ErrNonFinite        = errors.New("non-finite integrand value")
	ErrInvalidInterval  = errors.New("invalid integration interval")
)

const (
	epmach = 2.220446049250313e-16
	uflow  = 2.2250738585072014e-308
)

// 21-point Kronrod abscissae and weights, with the embedded 10-point Gauss weights.
var (
	xgk = [11]float64{
		0.995657163025808080735527280689003,
		0.973906528517171720077964012084452,
		0.930157491355708226001207180059508,
		0.865063366688984510732096688423493,
		0.780817726586416897063717578345042,
		0.679409568299024406234327365114874,
		0.562757134668604683339000099272694,
		0.433395394129247190799265943165784,
		0.294392862701460198131126603103866,
		0.148874338981631210884826001129720,
		0.000000000000000000000000000000000,
	}
	wgk = [11]float64{
		0.011694638867371874278064396062192,
		0.032558162307964727478818972459390,
		0.054755896574351996031381300244580,
		0.075039674810919952767043140916190,
		0.093125454583697605535065465083366,
		0.109387158802297641899210590325805,
		0.123491976262065851077208611465664,
		0.134709217311473325928054001771707,
		0.142775938577060080797094273138717,
		0.147739104901338491374841515972068,
		0.149445554002916905664936468389821,
	}
	wg = [5]float64{
		0.066671344308688137593568809893332,
		0.149451349150580593145776339657697,
		0.219086362515982043995534934228163,
		0.269266719309996355091226921569469,
		0.295524224714752870173892994651338,
	}
)

// QuadOptions controls adaptive integration.
type QuadOptions struct {
	AbsTol float64
	RelTol float64
	Limit  int // maximum number of subintervals
}

// DefaultQuadOptions returns tolerances of 1.49e-8 and a budget of 50 subintervals.
func DefaultQuadOptions() QuadOptions {
	return QuadOptions{
		AbsTol: 1.49e-8,
		RelTol: 1.49e-8,
		Limit:  50,
	}
}

// QuadResult is the outcome of Integrate. On failure it still carries the
// best estimate reached.
type QuadResult struct {
	Value        float64
	AbsError     float64
	Subintervals int
	Evaluations  int
}

type segment struct {
	a, b   float64
	result float64
	err    float64
	resAbs float64
}

type segmentHeap []segment

func (h segmentHeap) Len() int            { return len(h) }
func (h segmentHeap) Less(i, j int) bool  { return h[i].err > h[j].err }
func (h segmentHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *segmentHeap) Push(x interface{}) { *h = append(*h, x.(segment)) }
func (h *segmentHeap) Pop() interface{} {
	old := *h
	n := len(old)
	s := old[n-1]
	*h = old[:n-1]
	return s
}

// Integrate approximates the integral of f over [a, b] by globally adaptive
// bisection with the 21-point Gauss-Kronrod rule: the subinterval with the
// largest error estimate is split until the total error meets
// max(AbsTol, RelTol*|result|) or the subinterval budget is spent.
//
// Endpoints are never evaluated. A non-finite integrand value, an exhausted
// budget, detected roundoff or a cancelled ctx returns an error alongside the
// partial result.
func Integrate(ctx context.Context, f func(float64) float64, a, b float64, opts QuadOptions) (QuadResult, error) {
	if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return QuadResult{Value: math.NaN()}, fmt.Errorf("%w: [%v, %v]", ErrInvalidInterval, a, b)
	}
	if opts.Limit < 1 {
		opts.Limit = 1
	}
	if opts.AbsTol <= 0 && opts.RelTol < math.Max(50*epmach, 5e-29) {
		return QuadResult{Value: math.NaN()}, fmt.Errorf("%w: tolerance cannot be achieved", ErrInvalidInterval)
	}

	res := QuadResult{}
	first, err := kronrod21(f, a, b)
	res.Evaluations += 21
	if err != nil {
		res.Value = math.NaN()
		return res, err
	}

	segs := &segmentHeap{first}
	total := first.result
	errSum := first.err
	res.Subintervals = 1

	var iroff1, iroff2 int
	var roundoff, tooSmall bool
	for {
		res.Value = total
		res.AbsError = errSum

		if errSum <= math.Max(opts.AbsTol, opts.RelTol*math.Abs(total)) {
			return res, nil
		}
		if roundoff {
			return res, ErrRoundoff
		}
		if tooSmall {
			return res, ErrBadIntegrand
		}
		if res.Subintervals >= opts.Limit {
			return res, fmt.Errorf("%w (limit %d)", ErrSubdivisionLimit, opts.Limit)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		worst := heap.Pop(segs).(segment)
		mid := 0.5 * (worst.a + worst.b)

		left, err := kronrod21(f, worst.a, mid)
		res.Evaluations += 21
		if err != nil {
			res.Value = math.NaN()
			return res, err
		}
		right, err := kronrod21(f, mid, worst.b)
		res.Evaluations += 21
		if err != nil {
			res.Value = math.NaN()
			return res, err
		}

		area := left.result + right.result
		areaErr := left.err + right.err
		total += area - worst.result
		errSum += areaErr - worst.err
		res.Subintervals++

		// The bisection stopped paying off.
		if left.err != left.resAbs && right.err != right.resAbs {
			if math.Abs(worst.result-area) <= 1e-5*math.Abs(area) && areaErr >= 0.99*worst.err {
				iroff1++
			}
			if res.Subintervals > 10 && areaErr > worst.err {
				iroff2++
			}
		}
		roundoff = iroff1 >= 6 || iroff2 >= 20
		tooSmall = math.Max(math.Abs(worst.a), math.Abs(worst.b)) <= (1+100*epmach)*(math.Abs(mid)+1000*uflow)

		heap.Push(segs, left)
		heap.Push(segs, right)
	}
}

// kronrod21 applies the 21-point Gauss-Kronrod rule on [a, b] and returns the
// estimate with an error bound scaled the way QUADPACK's qk21 scales it.
func kronrod21(f func(float64) float64, a, b float64) (segment, error) {
	center := 0.5 * (a + b)
	half := 0.5 * (b - a)
	absHalf := math.Abs(half)

	var fv1, fv2 [10]float64

	fc := f(center)
	if math.IsNaN(fc) || math.IsInf(fc, 0) {
		return segment{}, fmt.Errorf("%w: f(%g) = %v", ErrNonFinite, center, fc)
	}
	resK := fc * wgk[10]
	resG := 0.0
	resAbs := math.Abs(resK)

	for j := 0; j < 10; j++ {
		dx := half * xgk[j]
		f1 := f(center - dx)
		f2 := f(center + dx)
		if math.IsNaN(f1) || math.IsInf(f1, 0) {
			return segment{}, fmt.Errorf("%w: f(%g) = %v", ErrNonFinite, center-dx, f1)
		}
		if math.IsNaN(f2) || math.IsInf(f2, 0) {
			return segment{}, fmt.Errorf("%w: f(%g) = %v", ErrNonFinite, center+dx, f2)
		}
		fv1[j] = f1
		fv2[j] = f2
		sum := f1 + f2
		resK += wgk[j] * sum
		resAbs += wgk[j] * (math.Abs(f1) + math.Abs(f2))
		if j%2 == 1 {
			resG += wg[j/2] * sum
		}
	}

	mean := resK * 0.5
	resAsc := wgk[10] * math.Abs(fc-mean)
	for j := 0; j < 10; j++ {
		resAsc += wgk[j] * (math.Abs(fv1[j]-mean) + math.Abs(fv2[j]-mean))
	}

	result := resK * half
	resAbs *= absHalf
	resAsc *= absHalf
	absErr := math.Abs((resK - resG) * half)

	if resAsc != 0 && absErr != 0 {
		absErr = resAsc * math.Min(1, math.Pow(200*absErr/resAsc, 1.5))
	}
	if resAbs > uflow/(50*epmach) {
		absErr = math.Max(50*epmach*resAbs, absErr)
	}

	return segment{a: a, b: b, result: result, err: absErr, resAbs: resAbs}, nil
}
