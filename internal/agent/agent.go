// Package agent runs the autonomous optimization loop: detect risks,
// derive candidate actions, auto-execute or request approval, and age the
// pending queue. One cycle runs to completion before the next begins; all
// loop state is owned by a single Agent instance so independent agents can
// coexist in tests.
package agent

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"carbonroute/internal/metrics"
	"carbonroute/internal/model"
	"carbonroute/internal/notify"
	"carbonroute/internal/opt"
	"carbonroute/internal/store"
)

// Config parameterizes one agent instance.
type Config struct {
	Interval             time.Duration // between cycles
	MinEmissionReduction float64       // tons; floor for acting on a risk
	AutoExecuteThreshold float64       // confidence floor for auto-execution
	RequireHumanApproval bool          // global safety override; disables all auto-execution
	NotifyOnActions      bool
	TrafficPoint         string // "lat,lon" the fleet corridor is scored at

	// Approval aging: pending actions older than ApprovalMaxAge with
	// confidence above AgingMinConfidence and cost impact below
	// AgingMaxCostUSD are approved and executed, bounding queue growth.
	ApprovalMaxAge    time.Duration
	AgingMinConfidence float64
	AgingMaxCostUSD   float64
}

func DefaultConfig() Config {
	return Config{
		Interval:             5 * time.Minute,
		MinEmissionReduction: 5,
		AutoExecuteThreshold: 0.9,
		RequireHumanApproval: false,
		NotifyOnActions:      true,
		TrafficPoint:         "52.5200,13.4050",
		ApprovalMaxAge:       24 * time.Hour,
		AgingMinConfidence:   0.8,
		AgingMaxCostUSD:      10000,
	}
}

// RiskDetector is the collaborator that surfaces at-risk suppliers.
type RiskDetector interface {
	Detect(ctx context.Context, suppliers []model.Supplier) ([]model.RiskAlert, error)
}

// Executor applies an approved action downstream. Failures are captured per
// action and never abort the cycle.
type Executor interface {
	Execute(ctx context.Context, a model.AgentAction) error
}

// SimulatedExecutor stands in for real downstream execution.
type SimulatedExecutor struct{}

func (SimulatedExecutor) Execute(context.Context, model.AgentAction) error { return nil }

// State is a snapshot of the agent's running counters.
type State struct {
	Running            bool      `json:"running"`
	CyclesRun          int       `json:"cyclesRun"`
	ActionsExecuted    int       `json:"actionsExecuted"`
	EmissionsSavedTons float64   `json:"emissionsSavedTons"`
	PendingApprovals   int       `json:"pendingApprovals"`
	LastCycleAt        time.Time `json:"lastCycleAt,omitempty"`
}

// Agent owns the loop. Construct with New; there are no package-level
// singletons.
type Agent struct {
	cfg       Config
	store     store.Store
	detector  RiskDetector
	optimizer *opt.RouteOptimizer
	notifier  notify.Notifier
	executor  Executor
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	state   State
}

func New(cfg Config, st store.Store, det RiskDetector, ro *opt.RouteOptimizer, n notify.Notifier, ex Executor) *Agent {
	if n == nil {
		n = notify.Log{}
	}
	if ex == nil {
		ex = SimulatedExecutor{}
	}
	return &Agent{
		cfg:       cfg,
		store:     st,
		detector:  det,
		optimizer: ro,
		notifier:  n,
		executor:  ex,
		now:       time.Now,
	}
}

// SetClock pins the time source; tests freeze it to drive approval aging.
func (a *Agent) SetClock(now func() time.Time) { a.now = now }

// Start launches the loop. Returns an error if already running.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("agent: already running")
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.loop(a.stopCh, a.doneCh)
	return nil
}

// Stop signals the loop to exit before the next cycle and waits for it.
// A cycle in flight is allowed to drain.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	stop, done := a.stopCh, a.doneCh
	a.mu.Unlock()
	close(stop)
	<-done
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// Status returns a copy of the running counters.
func (a *Agent) Status() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.state
	s.Running = a.running
	return s
}

func (a *Agent) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()
	for {
		if err := a.RunCycle(context.Background()); err != nil {
			log.Printf("agent: cycle error: %v", err)
			metrics.AgentCycles.WithLabelValues("error").Inc()
		} else {
			metrics.AgentCycles.WithLabelValues("ok").Inc()
		}
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// RunCycle executes one full cycle: detect -> decide -> execute/request ->
// age approvals. Serialized by the agent mutex so concurrent callers (the
// loop and a manual trigger) never interleave state mutation.
func (a *Agent) RunCycle(ctx context.Context) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent: cycle panicked: %v", r)
		}
	}()

	suppliers, err := a.store.ListSuppliers(ctx)
	if err != nil {
		return fmt.Errorf("agent: list suppliers: %w", err)
	}

	alerts, err := a.detector.Detect(ctx, suppliers)
	if err != nil {
		return fmt.Errorf("agent: risk detection: %w", err)
	}

	for _, alert := range alerts {
		if alert.EmissionDelta < a.cfg.MinEmissionReduction {
			continue
		}
		action, ok := a.deriveAction(ctx, alert)
		if !ok {
			continue
		}
		if a.shouldAutoExecute(action) {
			action.AutoExecuted = true
			a.execute(ctx, &action)
		} else {
			action.HumanApprovalRequired = true
			if err := a.store.InsertAction(ctx, action); err != nil {
				log.Printf("agent: insert action %s: %v", action.ID, err)
				continue
			}
			metrics.ActionTransitions.WithLabelValues(string(model.StatusPending)).Inc()
			a.notifyTransition(ctx, action)
		}
	}

	a.ageApprovals(ctx)

	pending, err := a.store.ListPendingActions(ctx)
	if err == nil {
		a.state.PendingApprovals = len(pending)
	}
	a.state.CyclesRun++
	a.state.LastCycleAt = a.now()
	return nil
}

// deriveAction turns a risk alert into a candidate intervention using the
// route optimizer. Non-improving recommendations produce no action.
func (a *Agent) deriveAction(ctx context.Context, alert model.RiskAlert) (model.AgentAction, bool) {
	res, err := a.optimizer.Optimize(ctx, alert.Supplier, a.cfg.TrafficPoint, alert.Supplier.DistanceKm)
	if err != nil {
		log.Printf("agent: optimize %s: %v", alert.Supplier.ID, err)
		return model.AgentAction{}, false
	}
	if res.EmissionSavings <= 0 {
		return model.AgentAction{}, false
	}

	typ := model.ActionRouteChange
	if res.RecommendedRoute.TransportMode != res.CurrentRoute.TransportMode {
		typ = model.ActionModeChange
	}
	conf := alert.Confidence * float64(res.ConfidencePct) / 100
	if conf > 1 {
		conf = 1
	}
	now := a.now()
	return model.AgentAction{
		ID:             fmt.Sprintf("act_%d_%s", now.UnixNano(), uuid.New().String()[:8]),
		Type:           typ,
		Trigger:        alert.Reason,
		Action:         res.Reason,
		EmissionImpact: -res.EmissionSavings,
		CostImpact:     res.CostImpact,
		Confidence:     conf,
		Status:         model.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, true
}

// shouldAutoExecute is the automation gate. The global safety override wins
// over any confidence or impact value.
func (a *Agent) shouldAutoExecute(act model.AgentAction) bool {
	if a.cfg.RequireHumanApproval {
		return false
	}
	return act.Confidence >= a.cfg.AutoExecuteThreshold &&
		math.Abs(act.EmissionImpact) >= a.cfg.MinEmissionReduction
}

// execute moves the action to executed (or failed) and records it in the
// append-only history.
func (a *Agent) execute(ctx context.Context, act *model.AgentAction) {
	act.UpdatedAt = a.now()
	if err := a.executor.Execute(ctx, *act); err != nil {
		act.Status = model.StatusFailed
		act.Log = err.Error()
		log.Printf("agent: execute %s failed: %v", act.ID, err)
	} else {
		act.Status = model.StatusExecuted
		a.state.ActionsExecuted++
		a.state.EmissionsSavedTons += -act.EmissionImpact
	}
	metrics.ActionTransitions.WithLabelValues(string(act.Status)).Inc()
	if err := a.store.AppendHistory(ctx, *act); err != nil {
		log.Printf("agent: history append %s: %v", act.ID, err)
	}
	a.notifyTransition(ctx, *act)
}

// ageApprovals is the bounded approve-by-default escape valve: pending
// actions past the age limit with good confidence and modest cost are
// approved and executed; everything else keeps waiting. Actions a human has
// already approved are executed here as well.
func (a *Agent) ageApprovals(ctx context.Context) {
	pending, err := a.store.ListPendingActions(ctx)
	if err != nil {
		log.Printf("agent: list pending: %v", err)
		return
	}
	now := a.now()
	for _, act := range pending {
		switch act.Status {
		case model.StatusApproved:
			a.execute(ctx, &act)
		case model.StatusPending:
			if now.Sub(act.CreatedAt) > a.cfg.ApprovalMaxAge &&
				act.Confidence > a.cfg.AgingMinConfidence &&
				act.CostImpact < a.cfg.AgingMaxCostUSD {
				act.Status = model.StatusApproved
				act.UpdatedAt = now
				metrics.ActionTransitions.WithLabelValues(string(model.StatusApproved)).Inc()
				a.notifyTransition(ctx, act)
				a.execute(ctx, &act)
			}
		}
	}
}

func (a *Agent) notifyTransition(ctx context.Context, act model.AgentAction) {
	if !a.cfg.NotifyOnActions {
		return
	}
	a.notifier.Notify(ctx, act)
}

// Approve transitions a pending action to approved; it executes on the next
// cycle. Callers outside the loop go through here to respect the state
// machine.
func (a *Agent) Approve(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transitionPending(ctx, id, model.StatusApproved)
}

// Reject terminates a pending action and moves it to history.
func (a *Agent) Reject(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	act, err := a.store.GetAction(ctx, id)
	if err != nil {
		return err
	}
	if act.Status != model.StatusPending {
		return fmt.Errorf("agent: cannot reject action in status %s", act.Status)
	}
	act.Status = model.StatusRejected
	act.UpdatedAt = a.now()
	metrics.ActionTransitions.WithLabelValues(string(model.StatusRejected)).Inc()
	if err := a.store.AppendHistory(ctx, act); err != nil {
		return err
	}
	a.notifyTransition(ctx, act)
	return nil
}

func (a *Agent) transitionPending(ctx context.Context, id string, to model.ActionStatus) error {
	act, err := a.store.GetAction(ctx, id)
	if err != nil {
		return err
	}
	if act.Status != model.StatusPending {
		return fmt.Errorf("agent: cannot move action from %s to %s", act.Status, to)
	}
	act.Status = to
	act.UpdatedAt = a.now()
	if err := a.store.UpdateAction(ctx, act); err != nil {
		return err
	}
	metrics.ActionTransitions.WithLabelValues(string(to)).Inc()
	a.notifyTransition(ctx, act)
	return nil
}
