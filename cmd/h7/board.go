package main

import (
	"context"
	stdErrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/reglet-dev/h7-kernel/application/config"
	"github.com/reglet-dev/h7-kernel/application/shell"
	"github.com/reglet-dev/h7-kernel/domain/fault"
	"github.com/reglet-dev/h7-kernel/domain/image"
	"github.com/reglet-dev/h7-kernel/domain/ports"
	"github.com/reglet-dev/h7-kernel/host"
	"github.com/reglet-dev/h7-kernel/hostfuncs"
	"github.com/reglet-dev/h7-kernel/infrastructure/native"
	"github.com/reglet-dev/h7-kernel/infrastructure/serial"
	"github.com/reglet-dev/h7-kernel/infrastructure/storage"
	"github.com/reglet-dev/h7-kernel/infrastructure/wazero"
	"github.com/reglet-dev/h7-kernel/internal/critical"
	"github.com/reglet-dev/h7-kernel/internal/fifo"
	"github.com/reglet-dev/h7-kernel/internal/heap"
	"github.com/reglet-dev/h7-kernel/internal/tracker"
	h7log "github.com/reglet-dev/h7-kernel/log"
)

// drainDelay is how long the board keeps serving after its input reached
// end of file, so the last command's output is not cut short.
const drainDelay = 50 * time.Millisecond

// board is everything brought up by "h7 run".
type board struct {
	transport ports.Transport
	interact  bool
	out       *serial.Writer
	input     *fifo.Queue
	shell     *shell.Shell
	closers   []func() error
}

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "board configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadBoard(*cfgPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b, err := bringUp(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	// Faults end the process from here; nothing below the shell recovers.
	defer fault.Recover(func(f *fault.Fault) {
		slog.Error("fault: halting", "reason", f.Reason)
		b.close()
		os.Exit(exitFault)
	})

	recvOpts := []serial.ReceiveOption{}
	if b.interact {
		recvOpts = append(recvOpts, serial.WithCRTranslation(), serial.WithBreak(0x03, cancel))
	}
	go func() {
		err := serial.Receive(ctx, b.transport, b.input, recvOpts...)
		if err == nil {
			// end of input: finish what was queued, then stop
			for b.input.Len() > 0 && ctx.Err() == nil {
				time.Sleep(time.Millisecond)
			}
			time.Sleep(drainDelay)
		}
		cancel()
	}()

	slog.Info("h7: board ready",
		"app_start", fmt.Sprintf("%#x", cfg.Memory.AppStart),
		"app_size", fmt.Sprintf("%#x", cfg.Memory.AppSize),
		"cpu", cfg.Runtime.CPU,
		"crc_policy", cfg.Runtime.CRCPolicy)

	err = b.shell.Serve(ctx)
	_, _ = io.WriteString(b.out, "\n")
	if stdErrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// bringUp wires the board from cfg in dependency order: terminal, logging,
// input queue, heap and tracker, host function table, storage, loader,
// CPU, engine, shell.
func bringUp(ctx context.Context, cfg config.Board) (_ *board, err error) {
	b := &board{}
	defer func() {
		if err != nil {
			b.close()
		}
	}()
	cs := &critical.Section{}

	var writerOpts []serial.WriterOption
	if cfg.Serial.Device == "" {
		console, err := serial.OpenConsole(os.Stdin, os.Stdout)
		if err != nil {
			return nil, err
		}
		b.transport, b.interact = console, console.Raw()
	} else {
		port, err := serial.OpenPort(cfg.Serial.Device, serial.WithBaud(cfg.Serial.Baud))
		if err != nil {
			return nil, err
		}
		b.transport, b.interact = port, true
	}
	b.closers = append(b.closers, b.transport.Close)
	if b.interact {
		writerOpts = append(writerOpts, serial.WithCRLF())
	}
	b.out = serial.NewWriter(b.transport, writerOpts...)
	level := &slog.LevelVar{}
	level.Set(cfg.LogLevel())
	h7log.Install(b.out, h7log.WithLevel(level))

	b.input = fifo.New(cs, cfg.Runtime.InputQueueSize)
	tr := tracker.New(cs,
		heap.New(cfg.Memory.HeapStart, cfg.Memory.HeapSize),
		tracker.WithCapacity(cfg.Runtime.TrackerCapacity))

	table, err := hostfuncs.NewTable(
		hostfuncs.WithAllocations(tr),
		hostfuncs.WithInput(b.input),
		hostfuncs.WithOutput(b.out),
	)
	if err != nil {
		return nil, err
	}

	devs, err := b.openStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	buf := image.NewBuffer(cfg.Memory.AppStart, cfg.Memory.AppSize)
	loader := host.NewLoader(buf, host.WithFiles(devs))

	cpu, err := b.openCPU(ctx, cfg, buf)
	if err != nil {
		return nil, err
	}

	engineOpts := []host.EngineOption{host.WithCRCPolicy(cfg.Policy())}
	if cfg.Runtime.ClearInputOnExit {
		engineOpts = append(engineOpts, host.WithInputFlush(b.input))
	}
	engine, err := host.NewEngine(buf, cpu, table, tr, engineOpts...)
	if err != nil {
		return nil, err
	}

	shellOpts := []shell.Option{shell.WithStorage(devs), shell.WithLogLevel(level)}
	if b.interact {
		shellOpts = append(shellOpts, shell.WithEcho())
	}
	b.shell = shell.New(b.out, b.input, loader, engine, shellOpts...)
	return b, nil
}

// openStorage mounts the devices that are configured. A missing card
// directory leaves sdcard unmounted rather than failing the board.
func (b *board) openStorage(cfg config.Storage) (*storage.Devices, error) {
	var opts []storage.DevicesOption
	if cfg.SDCardRoot != "" {
		sd, err := storage.OpenSDCard(cfg.SDCardRoot)
		if err != nil {
			slog.Warn("storage: sdcard not mounted", "root", cfg.SDCardRoot, "error", err)
		} else {
			b.closers = append(b.closers, sd.Close)
			opts = append(opts, storage.WithSDCard(sd))
		}
	}
	if cfg.FlashPath != "" {
		flash, err := storage.OpenFlash(storage.WithFlashPath(cfg.FlashPath))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, flash.Close)
		opts = append(opts, storage.WithNOR(flash))
	}
	return storage.NewDevices(opts...), nil
}

func (b *board) openCPU(ctx context.Context, cfg config.Board, buf *image.Buffer) (ports.CPU, error) {
	if cfg.Runtime.CPU == config.CPUNative {
		return native.New(), nil
	}
	cpu, err := wazero.New(ctx, buf, wazero.WithHeapWindow(cfg.Memory.HeapStart, cfg.Memory.HeapSize))
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func() error { return cpu.Close(context.Background()) })
	return cpu, nil
}

// close releases everything in reverse order. It is safe to call twice.
func (b *board) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Debug("h7: close failed", "error", err)
		}
	}
	b.closers = nil
}
