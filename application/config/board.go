// Package config provides the board configuration: memory map, runtime
// policy, storage and terminal settings.
package config

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xyproto/env/v2"

	"github.com/reglet-dev/h7-kernel/domain/errors"
	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/domain/ports"
	"github.com/reglet-dev/h7-kernel/host"
)

// Environment variables that override the file.
const (
	EnvLogLevel     = "H7_LOG_LEVEL"
	EnvCRCPolicy    = "H7_CRC_POLICY"
	EnvCPU          = "H7_CPU"
	EnvSDCardRoot   = "H7_SDCARD_ROOT"
	EnvFlashPath    = "H7_FLASH_PATH"
	EnvSerialDevice = "H7_SERIAL_DEVICE"
	EnvSerialBaud   = "H7_SERIAL_BAUD"
	EnvClearInput   = "H7_CLEAR_INPUT"
)

// CPU backends.
const (
	CPUWasm   = "wasm"
	CPUNative = "native"
)

// Board is the complete configuration.
type Board struct {
	Memory  MemoryMap `yaml:"memory" json:"memory"`
	Runtime Runtime   `yaml:"runtime" json:"runtime"`
	Storage Storage   `yaml:"storage" json:"storage"`
	Serial  Serial    `yaml:"serial" json:"serial"`
	Log     Log       `yaml:"log" json:"log"`
}

// MemoryMap places the application region and the host heap.
type MemoryMap struct {
	AppStart  uint32 `yaml:"app_start" json:"app_start" validate:"required" jsonschema:"description=First byte of the application region; the entry header lives here"`
	AppSize   uint32 `yaml:"app_size" json:"app_size" validate:"gte=8" jsonschema:"description=Size of the application region in bytes"`
	HeapStart uint32 `yaml:"heap_start" json:"heap_start" validate:"required" jsonschema:"description=First byte of the heap window applications allocate from"`
	HeapSize  uint32 `yaml:"heap_size" json:"heap_size" validate:"gt=0" jsonschema:"description=Size of the heap window in bytes"`
}

// Runtime holds loader and engine policy.
type Runtime struct {
	TrackerCapacity  int    `yaml:"tracker_capacity" json:"tracker_capacity" validate:"gte=1,lte=4096" jsonschema:"description=Maximum live allocations per run"`
	InputQueueSize   int    `yaml:"input_queue_size" json:"input_queue_size" validate:"gte=16,lte=65536"`
	CRCPolicy        string `yaml:"crc_policy" json:"crc_policy" validate:"oneof=report enforce" jsonschema:"enum=report,enum=enforce"`
	ClearInputOnExit bool   `yaml:"clear_input_on_exit" json:"clear_input_on_exit" jsonschema:"description=Drop unread input after an application returns"`
	CPU              string `yaml:"cpu" json:"cpu" validate:"oneof=wasm native" jsonschema:"enum=wasm,enum=native"`
}

// Storage locates the devices.
type Storage struct {
	SDCardRoot string `yaml:"sdcard_root" json:"sdcard_root" jsonschema:"description=Host directory served as sdcard:/"`
	FlashPath  string `yaml:"flash_path" json:"flash_path" jsonschema:"description=Database file backing nor:/"`
}

// Serial selects the terminal transport. An empty device means the
// process's own console.
type Serial struct {
	Device string `yaml:"device" json:"device"`
	Baud   int    `yaml:"baud" json:"baud" validate:"gte=300"`
}

// Log configures the logger.
type Log struct {
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// Default returns the configuration of the reference board.
func Default() Board {
	return Board{
		Memory: MemoryMap{
			AppStart:  0x2400_0000,
			AppSize:   0x8_0000,
			HeapStart: 0x3000_0000,
			HeapSize:  0x4_0000,
		},
		Runtime: Runtime{
			TrackerCapacity:  128,
			InputQueueSize:   256,
			CRCPolicy:        "report",
			ClearInputOnExit: true,
			CPU:              CPUWasm,
		},
		Storage: Storage{
			SDCardRoot: "sdcard",
			FlashPath:  "nor.db",
		},
		Serial: Serial{Baud: 115_200},
		Log:    Log{Level: "info"},
	}
}

// Load parses data over the defaults, applies environment overrides and
// validates the result.
func Load(data []byte, parser ports.ConfigParser) (Board, error) {
	b := Default()
	if len(data) > 0 {
		if err := parser.Parse(data, &b); err != nil {
			return Board{}, fmt.Errorf("parse board config: %w", err)
		}
	}
	ApplyEnv(&b)
	if err := b.Validate(); err != nil {
		return Board{}, err
	}
	return b, nil
}

// LoadFile reads path and calls Load. An empty path loads the defaults.
func LoadFile(path string, parser ports.ConfigParser) (Board, error) {
	if path == "" {
		return Load(nil, parser)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Board{}, fmt.Errorf("read board config: %w", err)
	}
	return Load(data, parser)
}

// ApplyEnv overrides b from the environment. Unset variables leave the
// field alone.
func ApplyEnv(b *Board) {
	b.Log.Level = env.Str(EnvLogLevel, b.Log.Level)
	b.Runtime.CRCPolicy = env.Str(EnvCRCPolicy, b.Runtime.CRCPolicy)
	b.Runtime.CPU = env.Str(EnvCPU, b.Runtime.CPU)
	b.Storage.SDCardRoot = env.Str(EnvSDCardRoot, b.Storage.SDCardRoot)
	b.Storage.FlashPath = env.Str(EnvFlashPath, b.Storage.FlashPath)
	b.Serial.Device = env.Str(EnvSerialDevice, b.Serial.Device)
	b.Serial.Baud = env.Int(EnvSerialBaud, b.Serial.Baud)
	if env.Has(EnvClearInput) {
		b.Runtime.ClearInputOnExit = env.Bool(EnvClearInput)
	}
}

// validate is a package-level singleton; building one per call is
// expensive.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateMemoryMap, MemoryMap{})
	return v
}

// validateMemoryMap checks what field tags cannot: regions must fit in the
// 32-bit address space, must not overlap, and the application region must
// be word aligned.
func validateMemoryMap(sl validator.StructLevel) {
	m := sl.Current().Interface().(MemoryMap)
	appEnd := uint64(m.AppStart) + uint64(m.AppSize)
	heapEnd := uint64(m.HeapStart) + uint64(m.HeapSize)

	if appEnd > 1<<32 {
		sl.ReportError(m.AppSize, "app_size", "AppSize", "fits32", "")
	}
	if heapEnd > 1<<32 {
		sl.ReportError(m.HeapSize, "heap_size", "HeapSize", "fits32", "")
	}
	if m.AppStart%4 != 0 {
		sl.ReportError(m.AppStart, "app_start", "AppStart", "aligned", "4")
	}
	if uint64(m.AppStart) < heapEnd && uint64(m.HeapStart) < appEnd {
		sl.ReportError(m.HeapStart, "heap_start", "HeapStart", "nooverlap", "")
	}
}

// Validate checks b and returns every problem as a *errors.ConfigError,
// joined.
func (b Board) Validate() error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stdErrors.As(err, &verrs) {
		return &errors.ConfigError{Err: err}
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &errors.ConfigError{Field: fieldPath(fe), Err: describe(fe)})
	}
	return stdErrors.Join(errs...)
}

// fieldPath turns "Board.memory.app_size" into "memory.app_size".
func fieldPath(fe validator.FieldError) string {
	_, rest, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return rest
}

func describe(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("must be set")
	case "oneof":
		return fmt.Errorf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "fits32":
		return fmt.Errorf("region extends past the 32-bit address space")
	case "aligned":
		return fmt.Errorf("must be %s-byte aligned", fe.Param())
	case "nooverlap":
		return fmt.Errorf("heap overlaps the application region")
	default:
		return fmt.Errorf("failed %s=%s (value %v)", fe.Tag(), fe.Param(), fe.Value())
	}
}

// AppRegion returns the region the address guard checks against.
func (b Board) AppRegion() guard.Region {
	return guard.Region{Start: b.Memory.AppStart, Size: b.Memory.AppSize}
}

// Policy returns the CRC policy. Validate has already rejected unknown
// values.
func (b Board) Policy() host.CRCPolicy {
	p, _ := host.ParseCRCPolicy(b.Runtime.CRCPolicy)
	return p
}

// LogLevel returns the configured slog level.
func (b Board) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(b.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
