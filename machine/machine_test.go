package machine

import (
	"testing"

	"github.com/user-none/meen/cpu"
)

// flatMemory is a flat 64K Controller used as a memory controller in tests.
// Its uuid is fixed and non-zero: the all-zero uuid is reserved to mean "no
// identity" and Save rejects it outright.
type flatMemory struct {
	bytes [65536]uint8
}

func (m *flatMemory) Read(addr uint16, _ Controller) uint8     { return m.bytes[addr] }
func (m *flatMemory) Write(addr uint16, v uint8, _ Controller) { m.bytes[addr] = v }
func (m *flatMemory) ServiceInterrupts(int64, int64, Controller) ISR {
	return cpu.NoInterrupt
}
func (m *flatMemory) Uuid() [16]byte { return [16]byte{0xAA} }

// scriptedIO is an io Controller whose ServiceInterrupts plays back a fixed
// ISR sequence, then NoInterrupt forever, except that OUT writes to 0xFE/
// 0xFF request Save/Quit on the very next poll - the saveAndExit stub's
// convention.
type scriptedIO struct {
	uuid             [16]byte
	seq              []ISR
	idx              int
	saveReq, quitReq bool
}

func (io *scriptedIO) Read(uint16, Controller) uint8 { return 0xFF }

func (io *scriptedIO) Write(addr uint16, _ uint8, _ Controller) {
	switch addr {
	case 0xFE:
		io.saveReq = true
	case 0xFF:
		io.quitReq = true
	}
}

func (io *scriptedIO) ServiceInterrupts(int64, int64, Controller) ISR {
	if io.quitReq {
		io.quitReq = false
		return cpu.Quit
	}
	if io.saveReq {
		io.saveReq = false
		return cpu.Save
	}
	if io.idx < len(io.seq) {
		v := io.seq[io.idx]
		io.idx++
		return v
	}
	return cpu.NoInterrupt
}

func (io *scriptedIO) Uuid() [16]byte { return io.uuid }

var saveAndExitStub = []byte{0xD3, 0xFE, 0xD3, 0xFF, 0x76} // OUT 0xFE; OUT 0xFF; HLT

func loadStub(mem *flatMemory) {
	copy(mem.bytes[:], saveAndExitStub)
}

func loadProgram(mem *flatMemory, prog []byte) {
	copy(mem.bytes[0x100:], prog)
}

func TestRunRequiresMemoryController(t *testing.T) {
	m := New()
	if err := m.Run(); err != ErrMemoryController {
		t.Fatalf("expected ErrMemoryController, got %v", err)
	}
}

func TestRunRequiresIoController(t *testing.T) {
	m := New()
	if err := m.AttachMemoryController(&flatMemory{}); err != nil {
		t.Fatalf("AttachMemoryController: %v", err)
	}
	if err := m.Run(); err != ErrIoController {
		t.Fatalf("expected ErrIoController, got %v", err)
	}
}

func TestAttachRejectsNilController(t *testing.T) {
	m := New()
	if err := m.AttachMemoryController(nil); err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestDetachWithoutAttachFails(t *testing.T) {
	m := New()
	if _, err := m.DetachMemoryController(); err != ErrMemoryController {
		t.Fatalf("expected ErrMemoryController, got %v", err)
	}
	if _, err := m.DetachIoController(); err != ErrIoController {
		t.Fatalf("expected ErrIoController, got %v", err)
	}
}

func TestRunSynchronousQuitsOnFirstPoll(t *testing.T) {
	m := New()
	mem := &flatMemory{}
	loadStub(mem)

	if err := m.AttachMemoryController(mem); err != nil {
		t.Fatalf("AttachMemoryController: %v", err)
	}
	if err := m.AttachIoController(&scriptedIO{seq: []ISR{cpu.Quit}}); err != nil {
		t.Fatalf("AttachIoController: %v", err)
	}

	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if m.running {
		t.Fatalf("expected machine to have stopped running after a synchronous Run")
	}
}

func TestWaitForCompletionWithoutRunFails(t *testing.T) {
	m := New()
	if _, err := m.WaitForCompletion(); err != ErrAsync {
		t.Fatalf("expected ErrAsync, got %v", err)
	}
}

// blockingIO blocks ServiceInterrupts on a channel so a test can observe the
// machine mid-run before letting it quit.
type blockingIO struct {
	uuid    [16]byte
	proceed chan struct{}
}

func (io *blockingIO) Read(uint16, Controller) uint8      { return 0xFF }
func (io *blockingIO) Write(uint16, uint8, Controller)    {}
func (io *blockingIO) Uuid() [16]byte                     { return io.uuid }
func (io *blockingIO) ServiceInterrupts(int64, int64, Controller) ISR {
	<-io.proceed
	return cpu.Quit
}

func TestAsyncRunBusyUntilComplete(t *testing.T) {
	m := New()
	if err := m.SetOptions(`{"runAsync":true}`); err != nil {
		t.Fatalf("SetOptions: %v", err)
	}

	mem := &flatMemory{}
	loadStub(mem)
	if err := m.AttachMemoryController(mem); err != nil {
		t.Fatalf("AttachMemoryController: %v", err)
	}

	io := &blockingIO{proceed: make(chan struct{})}
	if err := m.AttachIoController(io); err != nil {
		t.Fatalf("AttachIoController: %v", err)
	}

	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if err := m.AttachMemoryController(&flatMemory{}); err != ErrBusy {
		t.Fatalf("expected ErrBusy while running, got %v", err)
	}
	if err := m.SetOptions(`{}`); err != ErrBusy {
		t.Fatalf("expected ErrBusy while running, got %v", err)
	}

	close(io.proceed)

	if _, err := m.WaitForCompletion(); err != nil {
		t.Fatalf("WaitForCompletion: %v", err)
	}

	if err := m.AttachMemoryController(&flatMemory{}); err != nil {
		t.Fatalf("expected attach to succeed once stopped, got %v", err)
	}
}

func TestSaveHandlerReceivesSnapshot(t *testing.T) {
	m := New()
	mem := &flatMemory{}
	// LXI B,0xFF12; OUT 0xFE (request save); OUT 0xFF (request quit); HLT.
	copy(mem.bytes[:], []byte{0x01, 0x12, 0xFF, 0xD3, 0xFE, 0xD3, 0xFF, 0x76})

	if err := m.AttachMemoryController(mem); err != nil {
		t.Fatalf("AttachMemoryController: %v", err)
	}
	if err := m.AttachIoController(&scriptedIO{}); err != nil {
		t.Fatalf("AttachIoController: %v", err)
	}

	var captured string
	if err := m.OnSave(func(json string) error {
		captured = json
		return nil
	}); err != nil {
		t.Fatalf("OnSave: %v", err)
	}

	if err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if captured == "" {
		t.Fatalf("expected a save handler invocation")
	}
}
