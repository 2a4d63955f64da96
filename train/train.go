// Package train runs training sessions over a validated container in a
// background worker.
package train

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/meikuraledutech/neurons"
	"github.com/meikuraledutech/neurons/internal/ctxlog"
	sync "github.com/sasha-s/go-deadlock"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoLoss    = errors.New("train: loss node has no module")
	ErrNoDataset = errors.New("train: no dataset")
	ErrLossShape = errors.New("train: loss is not a scalar")
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
	StatusStopped Status = "stopped"
)

// Optimizer updates parameters from their gradients.
type Optimizer interface {
	Step(params []*neurons.Param)
}

// SGD is plain stochastic gradient descent.
type SGD struct {
	LearningRate float64
}

func (o SGD) Step(params []*neurons.Param) {
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		p.Value.Sub(p.Value, scaled(o.LearningRate, p.Grad))
	}
}

func scaled(f float64, m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}

// BackwardFunc fills parameter gradients for one example given its scalar
// loss. Built-in layers have no autodiff, so gradients come from here.
type BackwardFunc func(c *neurons.Container, ex neurons.Example, loss float64) error

// Options configures a session.
type Options struct {
	Epochs    int
	Optimizer Optimizer
	Backward  BackwardFunc
	// Output receives the human-readable progress lines. Optional.
	Output io.Writer
}

// EpochReport summarizes one epoch.
type EpochReport struct {
	Epoch      int     `json:"epoch"`
	TrainLoss  float64 `json:"train_loss"`
	ValidLoss  float64 `json:"valid_loss"`
	ValidError float64 `json:"valid_error"`
}

// Result is delivered when the worker exits.
type Result struct {
	Status    Status        `json:"status"`
	Epochs    []EpochReport `json:"epochs"`
	TestLoss  float64       `json:"test_loss"`
	TestError float64       `json:"test_error"`
	Err       error         `json:"-"`
}

// Session is one running training job.
type Session struct {
	ID string

	cancel context.CancelFunc
	done   chan Result

	mu     sync.Mutex
	status Status
	epochs []EpochReport
	result *Result
}

// Start launches a worker that trains c on ds. Cancelling ctx or calling
// Stop halts the worker before the next example.
func Start(ctx context.Context, c *neurons.Container, ds *neurons.Dataset, opts Options) *Session {
	if opts.Epochs < 1 {
		opts.Epochs = 1
	}
	if opts.Optimizer == nil {
		opts.Optimizer = SGD{LearningRate: 0.01}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ID:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan Result, 1),
		status: StatusRunning,
	}
	logger := ctxlog.FromContext(ctx).With("session", s.ID)
	ctx = ctxlog.WithLogger(ctx, logger)

	go func() {
		defer cancel()
		res := s.run(ctx, c, ds, opts)
		res.Epochs = s.Reports()
		s.mu.Lock()
		s.status = res.Status
		s.result = &res
		s.mu.Unlock()
		if res.Err != nil {
			logger.Error("training ended", "status", res.Status, "error", res.Err)
		} else {
			logger.Info("training ended", "status", res.Status)
		}
		s.done <- res
	}()
	return s
}

func (s *Session) run(ctx context.Context, c *neurons.Container, ds *neurons.Dataset, opts Options) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Err = fmt.Errorf("train: panic: %v\n%s", r, debug.Stack())
		}
	}()

	w := &worker{c: c, opts: opts, logger: ctxlog.FromContext(ctx)}
	if err := w.check(ds); err != nil {
		return Result{Status: StatusFailed, Err: err}
	}
	w.printf("%s", c.String())
	c.Train()

	for epoch := range opts.Epochs {
		trainLoss, err := w.trainEpoch(ctx, ds.Train)
		if err != nil {
			return w.halt(ctx, err)
		}
		validLoss, validErr, err := w.evaluate(ctx, ds.Valid)
		if err != nil {
			return w.halt(ctx, err)
		}
		rep := EpochReport{Epoch: epoch, TrainLoss: trainLoss, ValidLoss: validLoss, ValidError: validErr}
		s.mu.Lock()
		s.epochs = append(s.epochs, rep)
		s.mu.Unlock()
		w.logger.Info("epoch", "epoch", epoch, "train_loss", trainLoss, "valid_loss", validLoss, "valid_error", validErr)
		w.printf("Epoch %d: Avg Train Loss: %.3g Validation Loss: %.3g Validation Error (%%): %.3g\n",
			epoch, trainLoss, validLoss, validErr)
	}

	testLoss, testErr, err := w.evaluate(ctx, ds.Test)
	if err != nil {
		return w.halt(ctx, err)
	}
	w.printf("Test Loss: %.3g Test Error (%%): %.3g\n", testLoss, testErr)
	return Result{Status: StatusDone, TestLoss: testLoss, TestError: testErr}
}

type worker struct {
	c      *neurons.Container
	opts   Options
	logger *slog.Logger
}

func (w *worker) check(ds *neurons.Dataset) error {
	if w.c.Loss() == nil {
		return ErrNoLoss
	}
	if ds == nil || ds.Train == nil {
		return ErrNoDataset
	}
	return nil
}

func (w *worker) halt(ctx context.Context, err error) Result {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return Result{Status: StatusStopped, Err: err}
	}
	return Result{Status: StatusFailed, Err: err}
}

func (w *worker) printf(format string, args ...any) {
	if w.opts.Output != nil {
		fmt.Fprintf(w.opts.Output, format, args...)
	}
}

// loss runs one example through the container and the loss module.
func (w *worker) loss(ex neurons.Example) (*mat.Dense, float64, error) {
	pred, err := w.c.Call(ex.Input)
	if err != nil {
		return nil, 0, err
	}
	out, err := w.c.Loss().Forward([]*mat.Dense{pred, ex.Target})
	if err != nil {
		return nil, 0, fmt.Errorf("train: loss: %w", err)
	}
	if len(out) != 1 {
		return nil, 0, fmt.Errorf("%w: %d outputs", ErrLossShape, len(out))
	}
	if r, c := out[0].Dims(); r != 1 || c != 1 {
		return nil, 0, fmt.Errorf("%w: %dx%d", ErrLossShape, r, c)
	}
	return pred, out[0].At(0, 0), nil
}

func (w *worker) trainEpoch(ctx context.Context, examples neurons.Examples) (float64, error) {
	var sum float64
	n := examples.Len()
	for i := range n {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		ex, err := examples.At(i)
		if err != nil {
			return 0, err
		}
		_, loss, err := w.loss(ex)
		if err != nil {
			return 0, err
		}
		sum += loss
		if w.opts.Backward != nil {
			if err := w.opts.Backward(w.c, ex, loss); err != nil {
				return 0, fmt.Errorf("train: backward: %w", err)
			}
		}
		w.opts.Optimizer.Step(w.c.Params())
		w.c.ZeroGrad()
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

// evaluate returns the average loss and the classification error in
// percent. The error is only meaningful for one-hot targets and stays zero
// for single-row targets.
func (w *worker) evaluate(ctx context.Context, examples neurons.Examples) (float64, float64, error) {
	if examples == nil || examples.Len() == 0 {
		return 0, 0, nil
	}
	w.c.Eval()
	defer w.c.Train()

	var sum float64
	var wrong, total int
	for i := range examples.Len() {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		ex, err := examples.At(i)
		if err != nil {
			return 0, 0, err
		}
		pred, loss, err := w.loss(ex)
		if err != nil {
			return 0, 0, err
		}
		sum += loss
		m, t := misclassified(pred, ex.Target)
		wrong += m
		total += t
	}
	errPct := 0.0
	if total > 0 {
		errPct = 100 * float64(wrong) / float64(total)
	}
	return sum / float64(examples.Len()), errPct, nil
}

// misclassified compares the arg max of every column.
func misclassified(pred, target *mat.Dense) (wrong, total int) {
	r, c := target.Dims()
	if r < 2 {
		return 0, 0
	}
	p := make([]float64, r)
	t := make([]float64, r)
	for j := range c {
		mat.Col(p, j, pred)
		mat.Col(t, j, target)
		if floats.MaxIdx(p) != floats.MaxIdx(t) {
			wrong++
		}
	}
	return wrong, c
}

// Status reports the current state without blocking.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Reports returns the epochs completed so far.
func (s *Session) Reports() []EpochReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]EpochReport(nil), s.epochs...)
}

// Result returns the final result once the worker has exited.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, true
}

// Stop asks the worker to halt before its next example.
func (s *Session) Stop() { s.cancel() }

// Wait blocks until the worker exits or ctx is done.
func (s *Session) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-s.done:
		s.done <- res
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
