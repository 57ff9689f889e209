// Package sitemodel fits independent per-column categorical models to
// alignment frequencies. It provides the fallback field values for positions
// the pairwise coupling model does not cover.
package sitemodel

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Fit estimates an L x q field table from an L x q frequency matrix, one
// regularized maximum-likelihood fit per column. effectiveN is the
// (reweighted) sequence count, lambdaH the L2 regularization strength.
//
// Column fits are independent, so they are fanned out over workers; rows of
// the result are written by column index, which keeps the output identical
// regardless of completion order. Optimizer failures are propagated rather
// than papered over: a silently substituted field value would corrupt the
// downstream optimization problem undetectably.
func Fit(freq *mat.Dense, lambdaH, effectiveN float64, workers int) (*mat.Dense, error) {
	l, q := freq.Dims()
	if workers <= 0 {
		workers = 1
	}

	fields := mat.NewDense(l, q, nil)
	jobs := make(chan int)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				row, err := fitColumn(mat.Row(nil, i, freq), lambdaH, effectiveN)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("fit column %d: %w", i, err)
					}
					mu.Unlock()
					continue
				}
				fields.SetRow(i, row)
			}
		}()
	}

	for i := 0; i < l; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return fields, nil
}

// fitColumn minimizes the regularized negative log-likelihood of a softmax
// model for one column:
//
//	N*(log sum_a exp(x_a) - sum_a f_a*x_a) + lambda*sum_a x_a^2
//
// with gradient N*(softmax(x) - f) + 2*lambda*x. The objective is smooth and
// convex, so a quasi-Newton start from the zero vector converges; the L2 term
// keeps even degenerate one-hot frequency rows bounded.
func fitColumn(f []float64, lambdaH, effectiveN float64) ([]float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			logZ := floats.LogSumExp(x)
			obj := effectiveN * (logZ - floats.Dot(f, x))
			for _, v := range x {
				obj += lambdaH * v * v
			}
			return obj
		},
		Grad: func(grad, x []float64) {
			logZ := floats.LogSumExp(x)
			for a, v := range x {
				p := math.Exp(v - logZ)
				grad[a] = effectiveN*(p-f[a]) + 2*lambdaH*x[a]
			}
		},
	}

	x0 := make([]float64, len(f))
	result, err := optimize.Minimize(problem, x0, nil, &optimize.LBFGS{})
	if err != nil {
		return nil, err
	}
	if err := result.Status.Err(); err != nil {
		return nil, err
	}
	return result.X, nil
}
