package simulation

import (
	"context"
	"sync"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/errors"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
)

// Comparison holds one method's outcome inside a method comparison. Exactly
// one of Result and Err is set.
type Comparison struct {
	Method string  `json:"method"`
	Result *Result `json:"result,omitempty"`
	Err    string  `json:"error,omitempty"`
}

// Compare runs the same compound set and overrides against several method
// templates concurrently and returns per-method outcomes in request order.
// One method failing (an unknown name, say) does not abort the others; its
// slot carries the error text instead of a result.
func (p *Pipeline) Compare(ctx context.Context, methods, compounds []string, ov *method.Overrides) ([]Comparison, error) {
	if len(methods) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Pipeline", "Compare", "require at least one method")
	}
	out := make([]Comparison, len(methods))
	var wg sync.WaitGroup
	for i, name := range methods {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Run(ctx, Request{Method: name, Compounds: compounds, Overrides: ov})
			out[i] = Comparison{Method: name}
			if err != nil {
				out[i].Err = err.Error()
				return
			}
			out[i].Result = res
		}()
	}
	wg.Wait()
	return out, nil
}

// Best returns the comparison entry with the highest score, tie-broken by
// request order. ok is false when every method failed.
func Best(comparisons []Comparison) (Comparison, bool) {
	best := Comparison{}
	found := false
	for _, c := range comparisons {
		if c.Result == nil {
			continue
		}
		if !found || c.Result.Performance.Score > best.Result.Performance.Score {
			best = c
			found = true
		}
	}
	return best, found
}
