// Command meenrun loads a program image into a flat 64K address space and
// drives it to completion, honoring SIGINT/SIGTERM as an ISR::Quit request
// and an optional save file path for ISR::Save/ISR::Load.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/user-none/meen/cpu"
	"github.com/user-none/meen/machine"
	"github.com/user-none/meen/romloader"
)

func main() {
	imagePath := flag.String("image", "", "path to the program image (raw, zip, 7z, gzip or rar)")
	entryPoint := flag.String("entry", "0x0000", "program counter Run resets the cpu to (hex or decimal)")
	savePath := flag.String("save", "", "path to persist/restore state on ISR::Save and ISR::Load")
	options := flag.String("options", "", "file://, json:// or raw JSON options overriding the defaults")
	flag.Parse()

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "meenrun: -image is required")
		os.Exit(2)
	}

	pc, err := strconv.ParseUint(*entryPoint, 0, 16)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meenrun: invalid -entry %q: %v\n", *entryPoint, err)
		os.Exit(2)
	}

	image, name, err := romloader.LoadImage(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "meenrun: failed to load %s: %v\n", *imagePath, err)
		os.Exit(1)
	}

	mem := newFlatMemory(image)
	io := newSignalIO()

	m := machine.New()

	if *options != "" {
		if err := m.SetOptions(*options); err != nil {
			fmt.Fprintf(os.Stderr, "meenrun: SetOptions: %v\n", err)
			os.Exit(1)
		}
	}

	if err := m.AttachMemoryController(mem); err != nil {
		fmt.Fprintf(os.Stderr, "meenrun: AttachMemoryController: %v\n", err)
		os.Exit(1)
	}
	if err := m.AttachIoController(io); err != nil {
		fmt.Fprintf(os.Stderr, "meenrun: AttachIoController: %v\n", err)
		os.Exit(1)
	}
	if err := m.SetEntryPoint(uint16(pc)); err != nil {
		fmt.Fprintf(os.Stderr, "meenrun: SetEntryPoint: %v\n", err)
		os.Exit(1)
	}

	if *savePath != "" {
		if err := m.OnSave(func(snapshot string) error {
			return os.WriteFile(*savePath, []byte(snapshot), 0644)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "meenrun: OnSave: %v\n", err)
			os.Exit(1)
		}
		if err := m.OnLoad(func() (string, error) {
			data, err := os.ReadFile(*savePath)
			if os.IsNotExist(err) {
				return "", nil
			}
			return string(data), err
		}); err != nil {
			fmt.Fprintf(os.Stderr, "meenrun: OnLoad: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Fprintf(os.Stderr, "meenrun: running %s from pc=0x%04x (ctrl-c to quit)\n", name, pc)

	if err := m.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "meenrun: Run: %v\n", err)
		os.Exit(1)
	}

	io.stop()
}

// flatMemory is a 64K flat address space Controller, the simplest possible
// host wiring: reads/writes index straight into a byte array, and it never
// itself requests an interrupt.
type flatMemory struct {
	bytes [65536]byte
	uuid  [16]byte
}

// newFlatMemory derives the controller's identity from the loaded image's
// CRC32 fingerprint, so a save taken against one image can never be loaded
// over a different one — Save rejects an all-zero uuid outright.
func newFlatMemory(image []byte) *flatMemory {
	m := &flatMemory{}
	copy(m.bytes[:], image)
	fp := romloader.Fingerprint(image)
	m.uuid[0], m.uuid[1], m.uuid[2], m.uuid[3] = byte(fp>>24), byte(fp>>16), byte(fp>>8), byte(fp)
	return m
}

func (m *flatMemory) Read(addr uint16, _ machine.Controller) uint8     { return m.bytes[addr] }
func (m *flatMemory) Write(addr uint16, v uint8, _ machine.Controller) { m.bytes[addr] = v }
func (m *flatMemory) ServiceInterrupts(int64, int64, machine.Controller) machine.ISR {
	return cpu.NoInterrupt // flatMemory never drives interrupts itself.
}
func (m *flatMemory) Uuid() [16]byte { return m.uuid }

// signalIO requests ISR::Quit once the process receives SIGINT or SIGTERM,
// and otherwise services no interrupts and ignores IN/OUT entirely. It is
// the minimum viable io controller: real hosts replace this with whatever
// peripheral and interrupt source their program expects.
type signalIO struct {
	uuid [16]byte
	sig  chan os.Signal
	quit bool
}

func newSignalIO() *signalIO {
	io := &signalIO{sig: make(chan os.Signal, 1)}
	signal.Notify(io.sig, syscall.SIGINT, syscall.SIGTERM)
	return io
}

func (io *signalIO) stop() {
	signal.Stop(io.sig)
}

func (io *signalIO) Read(uint16, machine.Controller) uint8   { return 0xFF }
func (io *signalIO) Write(uint16, uint8, machine.Controller) {}
func (io *signalIO) Uuid() [16]byte                          { return io.uuid }

func (io *signalIO) ServiceInterrupts(int64, int64, machine.Controller) machine.ISR {
	if io.quit {
		return cpu.Quit
	}
	select {
	case <-io.sig:
		io.quit = true
		return cpu.Quit
	default:
		return cpu.NoInterrupt
	}
}
