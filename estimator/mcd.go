// Package estimator fits robust location/scatter estimates and derives a
// display primary matrix from them.
//
// MinCovDet is a FastMCD implementation (Rousseeuw & Van Driessen, 1999):
// random h-subsets are improved by concentration steps, the best candidates
// are refined to convergence, and the winner is consistency corrected and
// reweighted. The random starts come from an explicit seed so that a fixed
// seed reproduces a fit bit for bit.
package estimator

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/OpenLEDEval/OLE-Toolset/apperr"
)

const (
	// flatDeterminant is the determinant, relative to (trace/p)^p, below
	// which a scatter matrix is singular
	flatDeterminant = 1e-12
	// hyperplaneTol is the distance within which a point lies on an exact-fit hyperplane
	hyperplaneTol = 1e-9
)

// Options controls the FastMCD search
type Options struct {
	// Seed fixes the random starts. nil draws a fresh seed per fit.
	Seed *uint64
	// Trials is the number of random starting subsets (default 30)
	Trials int
	// Candidates is how many of the best starts are refined (default 10)
	Candidates int
	// MaxIterations bounds the concentration steps of a refinement (default 30)
	MaxIterations int
	// SupportFraction sets h = ceil(fraction*n); 0 uses floor((n+p+1)/2)
	SupportFraction float64
}

// DefaultOptions returns the FastMCD defaults
func DefaultOptions() Options {
	return Options{Trials: 30, Candidates: 10, MaxIterations: 30}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Trials <= 0 {
		o.Trials = d.Trials
	}
	if o.Candidates <= 0 {
		o.Candidates = d.Candidates
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = d.MaxIterations
	}
	return o
}

// WithSeed returns a copy of o using seed
func (o Options) WithSeed(seed uint64) Options {
	o.Seed = &seed
	return o
}

// Fit is a robust location/scatter estimate
type Fit struct {
	Location    []float64
	Covariance  *mat.SymDense
	RawLocation []float64
	// Support marks the observations used by the final estimate
	Support []bool
	// Distances are squared Mahalanobis distances to the final estimate.
	// They are nil for an exact fit.
	Distances []float64
	// ExactFit is set when at least h observations lie on a degenerate subspace
	// (identical points or a hyperplane). Location is then their mean.
	ExactFit bool
}

// Outliers returns the number of observations outside the support
func (f *Fit) Outliers() int {
	n := 0
	for _, in := range f.Support {
		if !in {
			n++
		}
	}
	return n
}

type candidate struct {
	support  []int
	location []float64
	cov      *mat.SymDense
	chol     *mat.Cholesky
	logDet   float64
}

func (c candidate) singular() bool { return math.IsInf(c.logDet, -1) }

type mcd struct {
	x   *mat.Dense
	n   int
	p   int
	h   int
	rng *rand.Rand
}

// MinCovDet computes the minimum covariance determinant estimate of points.
// Every point must have the same dimension p, and at least p+1 points are required.
func MinCovDet(points [][]float64, opts Options) (*Fit, error) {
	opts = opts.withDefaults()

	n := len(points)
	if n == 0 {
		return nil, apperr.InsufficientSamples("points", 0, 2)
	}
	p := len(points[0])
	if p == 0 {
		return nil, apperr.Domainf("points have no components")
	}
	if n < p+1 {
		return nil, apperr.InsufficientSamples("points", n, p+1)
	}

	x := mat.NewDense(n, p, nil)
	for i, pt := range points {
		if len(pt) != p {
			return nil, apperr.Domainf("point %d has %d components, want %d", i, len(pt), p)
		}
		x.SetRow(i, pt)
	}

	h := (n + p + 1) / 2
	if opts.SupportFraction > 0 {
		h = int(math.Ceil(opts.SupportFraction * float64(n)))
	}
	if h < p+1 {
		h = p + 1
	}
	if h > n {
		h = n
	}

	var seed uint64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		seed = rand.Uint64()
	}

	m := &mcd{
		x:   x,
		n:   n,
		p:   p,
		h:   h,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}

	best := m.search(opts)
	if best.singular() {
		return m.exactFit(best), nil
	}
	return m.reweight(best), nil
}

// search runs the random starts and refines the best candidates
func (m *mcd) search(opts Options) candidate {
	starts := make([]candidate, 0, opts.Trials)
	for t := 0; t < opts.Trials; t++ {
		perm := m.rng.Perm(m.n)
		c := m.concentrate(perm[:m.h], 2)
		if c.singular() {
			return c
		}
		starts = append(starts, c)
	}

	sort.SliceStable(starts, func(i, j int) bool { return starts[i].logDet < starts[j].logDet })
	if len(starts) > opts.Candidates {
		starts = starts[:opts.Candidates]
	}

	best := candidate{logDet: math.Inf(1)}
	for _, s := range starts {
		c := m.concentrate(s.support, opts.MaxIterations)
		if c.singular() {
			return c
		}
		if c.logDet < best.logDet {
			best = c
		}
	}
	return best
}

// concentrate applies up to iterations C-steps starting from support
func (m *mcd) concentrate(support []int, iterations int) candidate {
	c := m.estimate(support)
	for i := 0; i < iterations && !c.singular(); i++ {
		next := m.estimate(m.closest(c.location, c.chol, m.h))
		if next.singular() {
			return next
		}
		if next.logDet >= c.logDet-1e-12*math.Max(1, math.Abs(c.logDet)) {
			if next.logDet < c.logDet {
				c = next
			}
			break
		}
		c = next
	}
	return c
}

// estimate computes the biased mean and covariance of the rows in support
func (m *mcd) estimate(support []int) candidate {
	idx := append([]int(nil), support...)
	sort.Ints(idx)

	sub := mat.NewDense(len(idx), m.p, nil)
	for r, i := range idx {
		sub.SetRow(r, m.x.RawRowView(i))
	}

	loc := make([]float64, m.p)
	for j := 0; j < m.p; j++ {
		loc[j] = stat.Mean(mat.Col(nil, j, sub), nil)
	}

	cov := mat.NewSymDense(m.p, nil)
	stat.CovarianceMatrix(cov, sub, nil)
	k := float64(len(idx))
	cov.ScaleSym((k-1)/k, cov)

	c := candidate{support: idx, location: loc, cov: cov, logDet: math.Inf(-1)}
	var chol mat.Cholesky
	if ok := chol.Factorize(cov); ok && !m.flat(cov, chol.LogDet()) {
		c.chol = &chol
		c.logDet = chol.LogDet()
	}
	return c
}

// flat reports whether the scatter is singular relative to its own scale.
// Points on a hyperplane yield a determinant at rounding level whose sign
// Cholesky cannot be trusted with.
func (m *mcd) flat(cov *mat.SymDense, logDet float64) bool {
	mean := mat.Trace(cov) / float64(m.p)
	if !(mean > 0) {
		return true
	}
	return logDet < math.Log(flatDeterminant)+float64(m.p)*math.Log(mean)
}

// distances returns the squared Mahalanobis distance of every row
func (m *mcd) distances(loc []float64, chol *mat.Cholesky) []float64 {
	center := mat.NewVecDense(m.p, loc)
	d := make([]float64, m.n)
	for i := 0; i < m.n; i++ {
		md := stat.Mahalanobis(mat.NewVecDense(m.p, m.x.RawRowView(i)), center, chol)
		d[i] = md * md
	}
	return d
}

// closest returns the indices of the k rows nearest to loc
func (m *mcd) closest(loc []float64, chol *mat.Cholesky, k int) []int {
	d := m.distances(loc, chol)
	idx := make([]int, m.n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return d[idx[a]] < d[idx[b]] })
	return idx[:k]
}

// exactFit handles a singular candidate. When at least h observations are
// identical their common value is the location. Otherwise, when at least h
// observations lie on the candidate's hyperplane, the location is the mean of
// all of them, so the result does not depend on which subset found it.
func (m *mcd) exactFit(c candidate) *Fit {
	loc, cov, members := c.location, c.cov, c.support
	if tie := m.largestTie(); len(tie) >= m.h {
		loc = append([]float64(nil), m.x.RawRowView(tie[0])...)
		members = tie
	} else if plane := m.onHyperplane(c); len(plane) >= m.h {
		e := m.estimate(plane)
		loc, cov, members = e.location, e.cov, plane
	}

	support := make([]bool, m.n)
	for _, i := range members {
		support[i] = true
	}
	return &Fit{
		Location:    loc,
		Covariance:  cov,
		RawLocation: c.location,
		Support:     support,
		ExactFit:    true,
	}
}

// onHyperplane returns the indices of the rows within hyperplaneTol of the
// hyperplane through c's location normal to its weakest scatter direction
func (m *mcd) onHyperplane(c candidate) []int {
	var eig mat.EigenSym
	if ok := eig.Factorize(c.cov, true); !ok {
		return nil
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	normal := mat.Col(nil, 0, &vecs)

	tol := hyperplaneTol * math.Max(1, floats.Norm(c.location, 2))
	var idx []int
	for i := 0; i < m.n; i++ {
		row := m.x.RawRowView(i)
		d := 0.0
		for j, v := range row {
			d += normal[j] * (v - c.location[j])
		}
		if math.Abs(d) <= tol {
			idx = append(idx, i)
		}
	}
	return idx
}

// largestTie returns the indices of the largest group of identical rows
func (m *mcd) largestTie() []int {
	var best []int
	seen := make([]bool, m.n)
	for i := 0; i < m.n; i++ {
		if seen[i] {
			continue
		}
		group := []int{i}
		for j := i + 1; j < m.n; j++ {
			if !seen[j] && equalRows(m.x.RawRowView(i), m.x.RawRowView(j)) {
				seen[j] = true
				group = append(group, j)
			}
		}
		if len(group) > len(best) {
			best = group
		}
	}
	return best
}

func equalRows(a, b []float64) bool {
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}

// reweight applies the consistency correction to the raw estimate and then
// re-estimates from the observations inside the 97.5% tolerance ellipsoid.
func (m *mcd) reweight(raw candidate) *Fit {
	chi2 := distuv.ChiSquared{K: float64(m.p)}

	d := m.distances(raw.location, raw.chol)
	correction := median(d) / chi2.Quantile(0.5)
	if !(correction > 0) || math.IsInf(correction, 0) {
		correction = 1
	}
	for i := range d {
		d[i] /= correction
	}

	cutoff := chi2.Quantile(0.975)
	var inliers []int
	for i, di := range d {
		if di <= cutoff {
			inliers = append(inliers, i)
		}
	}

	final := candidate{}
	if len(inliers) >= m.p+1 {
		final = m.estimate(inliers)
	}
	if len(inliers) < m.p+1 || final.singular() {
		// keep the corrected raw estimate
		cov := mat.NewSymDense(m.p, nil)
		cov.ScaleSym(correction, raw.cov)
		support := make([]bool, m.n)
		for _, i := range raw.support {
			support[i] = true
		}
		return &Fit{
			Location:    raw.location,
			Covariance:  cov,
			RawLocation: raw.location,
			Support:     support,
			Distances:   d,
		}
	}

	support := make([]bool, m.n)
	for _, i := range final.support {
		support[i] = true
	}
	return &Fit{
		Location:    final.location,
		Covariance:  final.cov,
		RawLocation: raw.location,
		Support:     support,
		Distances:   m.distances(final.location, final.chol),
	}
}

func median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
