// Package machine wires a cpu, a clock and an options store into the
// deterministic Intel 8080 run loop: fetch-decode-execute, paced against
// wall-clock time, polling an attached io controller for interrupts and
// machine-level save/load/quit requests.
package machine

import (
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/user-none/meen/clock"
	"github.com/user-none/meen/cpu"
	"github.com/user-none/meen/opt"
	"github.com/user-none/meen/state"
)

// Controller is the external collaborator a Machine attaches for memory and
// io access; re-exported from cpu so callers never need to import cpu
// directly just to implement one.
type Controller = cpu.Controller

// ISR is the value a Controller's ServiceInterrupts returns; re-exported
// from cpu for the same reason.
type ISR = cpu.ISR

const (
	saveKey = "save"
	loadKey = "load"
)

// Machine owns a cpu, a clock, an options store and the attached
// controllers, and drives the run loop described in the package doc.
// The zero value is not usable; construct with New.
type Machine struct {
	mu sync.Mutex

	cpu   *cpu.CPU
	clock *clock.Clock
	opt   *opt.Opt
	log   *log.Logger

	memCtrl Controller
	ioCtrl  Controller

	romRanges []state.Range

	onSave func(json string) error
	onLoad func() (string, error)

	sf singleflight.Group

	entryPoint uint16

	running     bool
	runTime     time.Duration
	ticksPerIsr int64
	g           *errgroup.Group
}

// New constructs a Machine for an Intel 8080 clocked at 2MHz, its
// historical reference speed. No controllers are attached; Run fails until
// both are.
func New() *Machine {
	return &Machine{
		clock: clock.New(2_000_000),
		cpu:   cpu.New(),
		opt:   opt.New(nil),
		log:   log.Default(),
	}
}

// SetLogger overrides the logger used for swallowed save/load handler
// failures and clock sampling-frequency warnings. A nil logger restores
// log.Default().
func (m *Machine) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.Default()
	}
	m.log = l
}

// SetOptions merges opts (file://, json:// or raw JSON) over the current
// configuration. See the opt package for the recognized keys.
func (m *Machine) SetOptions(opts string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrBusy
	}

	return m.opt.SetOptions(opts)
}

// AttachMemoryController attaches the controller Execute reads instructions
// and data from, transferring ownership into the machine.
func (m *Machine) AttachMemoryController(ctrl Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrBusy
	}
	if ctrl == nil {
		return ErrInvalidArgument
	}

	m.cpu.SetMemoryController(ctrl)
	m.memCtrl = ctrl
	return nil
}

// DetachMemoryController detaches and returns the current memory
// controller.
func (m *Machine) DetachMemoryController() (Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil, ErrBusy
	}
	if m.memCtrl == nil {
		return nil, ErrMemoryController
	}

	ctrl := m.memCtrl
	m.cpu.SetMemoryController(nil)
	m.memCtrl = nil
	return ctrl, nil
}

// AttachIoController attaches the controller IN/OUT address and that
// ServiceInterrupts is polled on, transferring ownership into the machine.
func (m *Machine) AttachIoController(ctrl Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrBusy
	}
	if ctrl == nil {
		return ErrInvalidArgument
	}

	m.cpu.SetIoController(ctrl)
	m.ioCtrl = ctrl
	return nil
}

// DetachIoController detaches and returns the current io controller.
func (m *Machine) DetachIoController() (Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil, ErrBusy
	}
	if m.ioCtrl == nil {
		return nil, ErrIoController
	}

	ctrl := m.ioCtrl
	m.cpu.SetIoController(nil)
	m.ioCtrl = nil
	return ctrl, nil
}

// OnSave registers the handler invoked when the io controller requests
// ISR::Save. fn receives the snapshot JSON and is responsible for
// persisting it; a non-nil error is logged and otherwise ignored by the run
// loop. Passing nil clears the handler.
func (m *Machine) OnSave(fn func(json string) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrBusy
	}
	m.onSave = fn
	return nil
}

// SetEntryPoint configures the program counter value Run resets the cpu to.
// The default, 0, is the normal power-on vector; a non-zero value lets a
// boot stub live below the program's true entry point, reachable only via
// an explicit jump rather than at reset.
func (m *Machine) SetEntryPoint(pc uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrBusy
	}
	m.entryPoint = pc
	return nil
}

// OnLoad registers the handler invoked when the io controller requests
// ISR::Load. fn returns the snapshot JSON to restore, or an empty string
// and a nil error to decline. Passing nil clears the handler.
func (m *Machine) OnLoad(fn func() (string, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrBusy
	}
	m.onLoad = fn
	return nil
}

// Run resets the cpu and clock and starts the loop. If runAsync is set in
// the current options, Run launches the loop on a tracked goroutine and
// returns immediately; WaitForCompletion joins it. Otherwise Run blocks
// until ISR::Quit is observed.
func (m *Machine) Run() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.memCtrl == nil {
		m.mu.Unlock()
		return ErrMemoryController
	}
	if m.ioCtrl == nil {
		m.mu.Unlock()
		return ErrIoController
	}
	if m.cpu == nil {
		m.mu.Unlock()
		return ErrCpu
	}

	if err := m.clock.SetSamplingFrequency(m.opt.ClockSamplingFreq()); err != nil {
		m.log.Printf("machine: %v", err)
	}

	m.cpu.Reset(m.entryPoint)
	m.clock.Reset()
	m.runTime = 0
	m.running = true
	m.ticksPerIsr = int64(m.opt.ISRFreq() * float64(m.clock.SamplingPeriodTicks()))
	runAsync := m.opt.RunAsync()
	m.mu.Unlock()

	g := &errgroup.Group{}
	g.Go(func() error {
		runTime := m.runLoop()
		m.mu.Lock()
		m.runTime = runTime
		m.running = false
		m.mu.Unlock()
		return nil
	})

	m.mu.Lock()
	m.g = g
	m.mu.Unlock()

	if !runAsync {
		g.Wait()
	}
	return nil
}

// WaitForCompletion blocks until an asynchronous run completes and returns
// the emulated run time. Returns ErrAsync if the machine was never run.
func (m *Machine) WaitForCompletion() (time.Duration, error) {
	m.mu.Lock()
	g := m.g
	m.mu.Unlock()

	if g == nil {
		return 0, ErrAsync
	}

	g.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runTime, nil
}

// runLoop is the fetch-decode-execute-pace-and-poll core. It owns no
// locking of its own: the caller has already verified the machine is
// exclusively running.
func (m *Machine) runLoop() time.Duration {
	var totalTicks, lastTicks int64
	var currTime time.Duration
	ticks := 0

	var loadCh <-chan singleflight.Result
	var saveCh <-chan singleflight.Result

	for {
		if totalTicks-lastTicks >= m.ticksPerIsr || ticks == 0 {
			lastTicks = totalTicks

			isr := m.ioCtrl.ServiceInterrupts(currTime.Nanoseconds(), totalTicks, m.memCtrl)

			switch {
			case isr <= cpu.Seven:
				if m.cpu.InterruptsEnabled() {
					ticks = m.cpu.Interrupt(isr)
					currTime = m.clock.Tick(int64(ticks))
					totalTicks += int64(ticks)
				}
			case isr == cpu.Load:
				loadCh = m.dispatchLoad(loadCh, saveCh)
			case isr == cpu.Save:
				saveCh = m.dispatchSave(loadCh, saveCh)
			case isr == cpu.Quit:
				m.flush(loadCh, saveCh)
				return currTime
			case isr == cpu.NoInterrupt:
				loadCh = m.pollLoad(loadCh)
				saveCh = m.pollSave(saveCh)
			}
		}

		ticks = m.cpu.Execute()
		currTime = m.clock.Tick(int64(ticks))
		totalTicks += int64(ticks)
	}
}

// dispatchLoad schedules the registered onLoad handler unless a load or
// save is already in flight. Under the synchronous launch policy it blocks
// for the result immediately, matching std::launch::deferred; under the
// async policy it returns a channel for later polling.
func (m *Machine) dispatchLoad(loadCh, saveCh <-chan singleflight.Result) <-chan singleflight.Result {
	if m.onLoad == nil || loadCh != nil || saveCh != nil {
		return loadCh
	}

	ch := m.sf.DoChan(loadKey, func() (interface{}, error) {
		return m.onLoad()
	})

	if !m.opt.LoadAsync() {
		m.applyLoadResult(<-ch)
		return nil
	}

	return m.pollLoad(ch)
}

// pollLoad applies the load result if ready, returning nil if it consumed
// the channel and loadCh unchanged otherwise.
func (m *Machine) pollLoad(loadCh <-chan singleflight.Result) <-chan singleflight.Result {
	if loadCh == nil {
		return nil
	}

	select {
	case res := <-loadCh:
		m.applyLoadResult(res)
		return nil
	default:
		return loadCh
	}
}

func (m *Machine) applyLoadResult(res singleflight.Result) {
	if res.Err != nil {
		m.log.Printf("machine: ISR::Load handler failed: %v", res.Err)
		return
	}

	snapshot, _ := res.Val.(string)
	if snapshot == "" {
		return
	}

	ranges, err := state.Load(snapshot, m.cpu, m.memCtrl, m.ioCtrl, m.memCtrl.Uuid(), nil)
	if err != nil {
		m.log.Printf("machine: ISR::Load failed to load the machine state: %v", err)
		return
	}
	m.romRanges = ranges
}

// dispatchSave captures the current snapshot and schedules the registered
// onSave handler unless a load or save is already in flight.
func (m *Machine) dispatchSave(loadCh, saveCh <-chan singleflight.Result) <-chan singleflight.Result {
	if m.onSave == nil || saveCh != nil || loadCh != nil {
		return saveCh
	}

	snapshot, err := state.Save(m.cpu, m.memCtrl, m.ioCtrl, m.memCtrl.Uuid(), m.romRanges, m.opt.Encoder(), m.opt.Compressor())
	if err != nil {
		m.log.Printf("machine: ISR::Save failed to capture the machine state: %v", err)
		return saveCh
	}

	ch := m.sf.DoChan(saveKey, func() (interface{}, error) {
		return nil, m.onSave(snapshot)
	})

	if !m.opt.SaveAsync() {
		res := <-ch
		if res.Err != nil {
			m.log.Printf("machine: ISR::Save handler failed: %v", res.Err)
		}
		return nil
	}

	return m.pollSave(ch)
}

// pollSave consumes the save result if ready, logging any handler failure.
func (m *Machine) pollSave(saveCh <-chan singleflight.Result) <-chan singleflight.Result {
	if saveCh == nil {
		return nil
	}

	select {
	case res := <-saveCh:
		if res.Err != nil {
			m.log.Printf("machine: ISR::Save handler failed: %v", res.Err)
		}
		return nil
	default:
		return saveCh
	}
}

// flush blocks until any in-flight load/save completes, applying a
// pending load's result before the loop exits.
func (m *Machine) flush(loadCh, saveCh <-chan singleflight.Result) {
	if loadCh != nil {
		m.applyLoadResult(<-loadCh)
	}
	if saveCh != nil {
		res := <-saveCh
		if res.Err != nil {
			m.log.Printf("machine: ISR::Save handler failed: %v", res.Err)
		}
	}
}
