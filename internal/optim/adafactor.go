package optim

import (
	"math"

	"github.com/gradientlab-ml/gradient/internal/nn"
	"github.com/gradientlab-ml/gradient/internal/tensor"
)

// AdaFactor implements the AdaFactor optimizer
// (https://arxiv.org/pdf/1804.04235.pdf): Adam-like adaptivity with a
// memory-efficient low-rank factorization of the second-moment
// estimate for matrix-shaped parameters, a relative step size scaled
// by the parameter's own RMS, and RMS clipping of the update.
//
// For a parameter of rank >= 2 with factorization enabled, the
// second moment is kept as a row vector of column sums and a column
// vector of row sums; their outer product normalized by the total
// reconstructs the dense estimate. Parameters of rank > 2 are viewed
// as 2-D for the duration of the update and the update is written back
// in the original shape. Vectors always keep a dense second moment.
type AdaFactor struct {
	*base
	beta1             float64 // 0 when momentum is disabled
	beta2             float64
	eps1              float64
	eps2              float64
	clippingThreshold float64
	nonConstantDecay  bool
	factorization     bool
	amsGrad           bool
	weightDecay       float64

	states []*adafactorState
}

type adafactorState struct {
	step     int
	expAvg   *tensor.Tensor // momentum, state shape
	expAvgSq *tensor.Tensor // dense second moment (exclusive with row/col)
	sqRow    *tensor.Tensor // {1, cols} column sums
	sqCol    *tensor.Tensor // {rows, 1} row sums
	sqHat    *tensor.Tensor // running max, state shape
}

// AdaFactorConfig holds configuration for AdaFactor. Zero values take
// the reference defaults; DisableMomentum turns the first-moment
// estimate off entirely.
type AdaFactorConfig struct {
	LR                float64
	Beta1             float64 // default 0.9
	Beta2             float64 // default 0.999
	Eps1              float64 // default 1e-30, additive stabilizer
	Eps2              float64 // default 1e-3, lower bound on parameter scale
	ClippingThreshold float64 // default 1, caps RMS of the update
	NonConstantDecay  bool    // step-corrected beta schedules
	Factorization     bool    // low-rank second moment for matrices
	AMSGrad           bool    // running max of the second moment
	WeightDecay       float64
	DisableMomentum   bool
}

// NewAdaFactor creates an AdaFactor optimizer over the given groups.
func NewAdaFactor(groups []*ParamGroup, config AdaFactorConfig) *AdaFactor {
	if config.Beta1 == 0 {
		config.Beta1 = 0.9
	}
	if config.Beta2 == 0 {
		config.Beta2 = 0.999
	}
	if config.Eps1 == 0 {
		config.Eps1 = 1e-30
	}
	if config.Eps2 == 0 {
		config.Eps2 = 1e-3
	}
	if config.ClippingThreshold == 0 {
		config.ClippingThreshold = 1
	}
	if config.DisableMomentum {
		config.Beta1 = 0
	}
	if config.NonConstantDecay {
		// The step-corrected beta2 schedule already damps early
		// estimates; the reference implementation drops the max
		// tracking in that mode.
		config.AMSGrad = false
	}
	if config.LR != 0 {
		for _, g := range groups {
			if g.LR == 0 {
				g.LR = config.LR
			}
		}
	}
	b := newBase(groups)
	return &AdaFactor{
		base:              b,
		beta1:             config.Beta1,
		beta2:             config.Beta2,
		eps1:              config.Eps1,
		eps2:              config.Eps2,
		clippingThreshold: config.ClippingThreshold,
		nonConstantDecay:  config.NonConstantDecay,
		factorization:     config.Factorization,
		amsGrad:           config.AMSGrad,
		weightDecay:       config.WeightDecay,
		states:            make([]*adafactorState, len(b.params)),
	}
}

// factoredShape collapses a rank>2 shape into the 2-D view used for
// factorization, preserving the total element count. Trailing
// dimensions split at their midpoint (rounded up): the leading half
// folds into the columns, the rest into the rows.
func factoredShape(shape tensor.Shape) (rows, cols int) {
	tail := shape[2:]
	if len(tail) == 1 {
		return shape[0], shape[1] * shape[2]
	}
	div := len(tail)/2 + len(tail)%2
	rows = shape[0]
	for _, d := range tail[div:] {
		rows *= d
	}
	cols = shape[1]
	for _, d := range tail[:div] {
		cols *= d
	}
	return rows, cols
}

// checkShape classifies a parameter: matrix-like (rank >= 2) and
// whether the factorization view requires a reshape (rank > 2).
func checkShape(shape tensor.Shape) (isMatrix, needReshape bool) {
	switch {
	case shape.Rank() > 2:
		return true, true
	case shape.Rank() == 2:
		return true, false
	default:
		return false, false
	}
}

// Step applies the AdaFactor update to every parameter with a
// gradient. Sparse gradients are a fatal error.
func (a *AdaFactor) Step() error {
	for _, g := range a.groups {
		for _, p := range g.Params {
			grad := p.Grad()
			if grad == nil || !p.RequiresGrad() {
				continue
			}
			if grad.IsSparse() {
				return errSparseGrad("adafactor")
			}
			if err := a.updateParameter(g, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *AdaFactor) updateParameter(g *ParamGroup, p *nn.Parameter) error {
	shape := p.Shape()
	isMatrix, needReshape := checkShape(shape)
	factored := isMatrix && a.factorization

	// State shape: the 2-D view when a factorization reshape applies,
	// the parameter's own shape otherwise.
	var rows, cols int
	stateShape := shape
	if factored {
		if needReshape {
			rows, cols = factoredShape(shape)
			stateShape = tensor.Shape{rows, cols}
		} else {
			rows, cols = shape[0], shape[1]
		}
	}

	id := a.index[p]
	st := a.states[id]
	if st == nil {
		st = &adafactorState{}
		if a.beta1 != 0 {
			st.expAvg = tensor.Zeros(stateShape, p.Value().Device())
		}
		if factored {
			st.sqRow = tensor.Zeros(tensor.Shape{1, cols}, p.Value().Device())
			st.sqCol = tensor.Zeros(tensor.Shape{rows, 1}, p.Value().Device())
		} else {
			st.expAvgSq = tensor.Zeros(stateShape, p.Value().Device())
		}
		if a.amsGrad {
			st.sqHat = tensor.Zeros(stateShape, p.Value().Device())
		}
		a.states[id] = st
	}

	st.step++
	t := st.step

	paramData := p.Value().Data()
	gradData := p.Grad().Data()
	n := len(paramData)

	// Relative step size, bounded below by eps2.
	lrT := g.LR * math.Max(a.eps2, p.Value().RMS())

	beta1T := a.beta1
	beta2T := a.beta2
	if a.nonConstantDecay {
		if a.beta1 != 0 {
			beta1T = a.beta1 * (1 - math.Pow(a.beta1, float64(t-1))) / (1 - math.Pow(a.beta1, float64(t)))
		}
		beta2T = a.beta2 * (1 - math.Pow(a.beta2, float64(t-1))) / (1 - math.Pow(a.beta2, float64(t)))
	}

	if a.beta1 != 0 {
		mData := st.expAvg.Data()
		for i := 0; i < n; i++ {
			mData[i] = float32(beta1T*float64(mData[i]) + (1-beta1T)*float64(gradData[i]))
		}
	}

	// Second-moment estimate, dense or reconstructed from factors.
	v := make([]float64, n)
	if factored {
		rowData := st.sqRow.Data() // column sums, length cols
		colData := st.sqCol.Data() // row sums, length rows
		colSums := make([]float64, cols)
		rowSums := make([]float64, rows)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				sq := float64(gradData[i*cols+j])
				sq = sq*sq + a.eps1
				rowSums[i] += sq
				colSums[j] += sq
			}
		}
		sumR := 0.0
		for j := 0; j < cols; j++ {
			rowData[j] = float32(beta2T*float64(rowData[j]) + (1-beta2T)*colSums[j])
			sumR += float64(rowData[j])
		}
		for i := 0; i < rows; i++ {
			colData[i] = float32(beta2T*float64(colData[i]) + (1-beta2T)*rowSums[i])
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				v[i*cols+j] = float64(colData[i]) * float64(rowData[j]) / sumR
			}
		}
	} else {
		vData := st.expAvgSq.Data()
		for i := 0; i < n; i++ {
			gv := float64(gradData[i])
			vv := beta2T*float64(vData[i]) + (1-beta2T)*gv*gv + (1-beta2T)*a.eps1
			vData[i] = float32(vv)
			v[i] = vv
		}
	}

	// Numerator: bias-corrected momentum when enabled, raw gradient
	// otherwise.
	u := make([]float64, n)
	if a.beta1 != 0 {
		mData := st.expAvg.Data()
		mCorr := 1 - math.Pow(beta1T, float64(t))
		for i := 0; i < n; i++ {
			u[i] = float64(mData[i]) / mCorr
		}
	} else {
		for i := 0; i < n; i++ {
			u[i] = float64(gradData[i])
		}
	}

	if a.amsGrad {
		hatData := st.sqHat.Data()
		vCorr := 1 - math.Pow(beta2T, float64(t))
		for i := 0; i < n; i++ {
			if v[i] > float64(hatData[i]) {
				hatData[i] = float32(v[i])
			}
			u[i] /= math.Sqrt(float64(hatData[i])/vCorr) + a.eps1
		}
	} else {
		for i := 0; i < n; i++ {
			u[i] /= math.Sqrt(v[i])
		}
	}

	// Cap the RMS magnitude of the update.
	sumSq := 0.0
	for i := 0; i < n; i++ {
		sumSq += u[i] * u[i]
	}
	rmsU := math.Sqrt(sumSq / float64(n))
	if div := rmsU / a.clippingThreshold; div > 1 {
		for i := 0; i < n; i++ {
			u[i] /= div
		}
	}

	for i := 0; i < n; i++ {
		paramData[i] -= float32(lrT * u[i])
	}
	if a.weightDecay != 0 {
		wd := float32(a.weightDecay * lrT)
		for i := 0; i < n; i++ {
			paramData[i] -= wd * paramData[i]
		}
	}
	return nil
}

// StateDict exports per-parameter steps and whichever accumulators
// each parameter carries.
func (a *AdaFactor) StateDict() *State {
	st := newState()
	for id, s := range a.states {
		if s == nil {
			continue
		}
		st.Steps[id] = s.step
		if s.expAvg != nil {
			st.Tensors[stateKey(id, "exp_avg")] = s.expAvg.Clone()
		}
		if s.expAvgSq != nil {
			st.Tensors[stateKey(id, "exp_avg_sq")] = s.expAvgSq.Clone()
		}
		if s.sqRow != nil {
			st.Tensors[stateKey(id, "exp_avg_sq_row")] = s.sqRow.Clone()
			st.Tensors[stateKey(id, "exp_avg_sq_col")] = s.sqCol.Clone()
		}
		if s.sqHat != nil {
			st.Tensors[stateKey(id, "exp_avg_sq_hat")] = s.sqHat.Clone()
		}
	}
	return st
}

// LoadStateDict restores per-parameter state by id.
func (a *AdaFactor) LoadStateDict(state *State) error {
	if state == nil {
		return nil
	}
	for id := range a.params {
		step, ok := state.Steps[id]
		if !ok {
			continue
		}
		s := &adafactorState{step: step}
		if m, ok := state.Tensors[stateKey(id, "exp_avg")]; ok {
			s.expAvg = m.Clone()
		}
		if v, ok := state.Tensors[stateKey(id, "exp_avg_sq")]; ok {
			s.expAvgSq = v.Clone()
		}
		if r, ok := state.Tensors[stateKey(id, "exp_avg_sq_row")]; ok {
			s.sqRow = r.Clone()
		}
		if c, ok := state.Tensors[stateKey(id, "exp_avg_sq_col")]; ok {
			s.sqCol = c.Clone()
		}
		if h, ok := state.Tensors[stateKey(id, "exp_avg_sq_hat")]; ok {
			s.sqHat = h.Clone()
		}
		a.states[id] = s
	}
	return nil
}

// stateFor exposes a parameter's lazily created state for inspection
// in tests and diagnostics. Returns nil before the first step that
// touched the parameter.
func (a *AdaFactor) stateFor(p *nn.Parameter) *adafactorState {
	id, ok := a.index[p]
	if !ok {
		return nil
	}
	return a.states[id]
}
