package shell

import (
	"context"
	stdErrors "errors"
	"log/slog"

	"github.com/reglet-dev/h7-kernel/domain/image"
	"github.com/reglet-dev/h7-kernel/host"
)

// StoreDevice is where pstore writes.
const StoreDevice = "nor"

// DefaultItems returns the builtin command table.
func DefaultItems() []Item {
	return []Item{
		{
			Name:        "help",
			Help:        "help <program> - Show help about a program",
			Description: "Show help about a program",
			Action:      help,
		},
		{
			Name:        "programs",
			Help:        "programs - Show available builtin programs",
			Description: "Show available builtin programs",
			Action:      programs,
		},
		{Name: "commands", AliasOf: "programs"},
		{
			Name:        "pload",
			Help:        "pload <dev:/path/to/bin.h7> - Load a program into ram",
			Description: "Load a program into ram",
			Action:      pload,
		},
		{
			Name:        "upload",
			Help:        "upload [hex] - Load a program into ram via serial. Data is sent in ascii hex.",
			Description: "Load a program into ram via serial",
			Action:      upload,
		},
		{
			Name:        "pinfo",
			Help:        "pinfo - Show the entry point, CRC and size of the program in ram",
			Description: "Inspect the program in ram",
			Action:      pinfo,
		},
		{
			Name:        "prun",
			Help:        "prun - Run program loaded in ram",
			Description: "Run program loaded in ram",
			Action:      prun,
		},
		{
			Name:        "ls",
			Help:        "ls <dev:/path> - List files",
			Description: "List files",
			Action:      ls,
		},
		{
			Name:        "pstore",
			Help:        "pstore <dev:/path/to/bin.h7> <name> - Copy a program to nor:/<name>",
			Description: "Copy a program to nor flash",
			Action:      pstore,
		},
		{
			Name:        "sys",
			Help:        "sys <loglevel [level]> - Control the system",
			Description: "Control the system",
			Action:      sys,
		},
	}
}

func help(ctx context.Context, s *Shell, args []string) error {
	if err := checkArgs(1, args); err != nil {
		return err
	}
	it, ok := s.lookup(args[0])
	if !ok {
		return ErrCommandNotFound
	}
	if it.AliasOf != "" {
		s.Printf("'%s' aliased to '%s'\n", it.Name, it.AliasOf)
		return s.Run(ctx, "help", []string{it.AliasOf})
	}
	s.Println(it.Help)
	return nil
}

func programs(_ context.Context, s *Shell, args []string) error {
	if err := checkArgs(0, args); err != nil {
		return err
	}
	for _, it := range s.items {
		if it.AliasOf != "" {
			s.Printf("%-*s aliased to %s\n", labelWidth, it.Name, it.AliasOf)
			continue
		}
		s.Printf("%-*s %s\n", labelWidth, it.Name, it.Description)
	}
	return nil
}

func pload(_ context.Context, s *Shell, args []string) error {
	if err := checkArgs(1, args); err != nil {
		return err
	}
	n, err := s.loader.LoadFile(args[0])
	if err != nil {
		s.Printf("Error: %v\n", err)
		return nil
	}
	s.Printf("Program '%s' loaded (%d bytes)\n", args[0], n)
	s.printReport()
	return nil
}

func upload(ctx context.Context, s *Shell, args []string) error {
	var (
		n   int
		err error
	)
	switch len(args) {
	case 0:
		s.Println("Waiting for data...")
		n, err = s.loader.ReceiveHex(ctx, s.in)
	case 1:
		n, err = s.loader.LoadHex(args[0])
	default:
		return &MenuError{Kind: ArgCount, Expected: 1, Actual: len(args)}
	}

	var hexErr *host.HexError
	switch {
	case stdErrors.As(err, &hexErr):
		s.Println(hexErr.Error())
		return ErrInvalidArgument
	case stdErrors.Is(err, image.ErrImageTooLarge):
		return commandError(err.Error())
	case err != nil:
		return err
	}

	s.Printf("Read %d bytes\n", n)
	if n < image.MinSize {
		s.Println("Not enough data")
		return nil
	}
	s.printReport()
	return nil
}

func pinfo(_ context.Context, s *Shell, args []string) error {
	if err := checkArgs(0, args); err != nil {
		return err
	}
	s.printReport()
	return nil
}

func prun(ctx context.Context, s *Shell, args []string) error {
	if err := checkArgs(0, args); err != nil {
		return err
	}
	ep, err := s.engine.Validate()
	if err != nil {
		switch {
		case stdErrors.Is(err, image.ErrCRCMismatch):
			return commandError("CRC mismatch")
		case stdErrors.Is(err, image.ErrImageTooShort):
			return commandError("Image too short")
		}
		return commandError("Invalid app address")
	}
	s.Printf("Executing from %s\n", ep)

	res, err := s.engine.Run(ctx)
	if err != nil {
		return commandError(err.Error())
	}
	status := "ok"
	if !res.OK() {
		status = "error"
	}
	s.Printf("Exit: %d (%s)\n", res.ExitCode, status)
	if res.Reclaimed > 0 {
		s.Printf("App leaked %d bytes\n", res.Reclaimed)
	}
	return nil
}

func ls(_ context.Context, s *Shell, args []string) error {
	if len(args) > 1 {
		return checkArgs(1, args)
	}
	if s.store == nil {
		s.Printf("Error: %v\n", host.ErrNoFilesystem)
		return nil
	}
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	entries, err := s.store.List(path)
	if err != nil {
		s.Printf("Error: %v\n", err)
		return nil
	}
	for _, e := range entries {
		if e.Dir {
			s.Printf("%-13s <DIR>\n", e.Name)
			continue
		}
		s.Printf("%-13s %d bytes\n", e.Name, e.Size)
	}
	return nil
}

func pstore(_ context.Context, s *Shell, args []string) error {
	if err := checkArgs(2, args); err != nil {
		return err
	}
	if s.store == nil {
		s.Printf("Error: %v\n", host.ErrNoFilesystem)
		return nil
	}
	buf := make([]byte, s.loader.Buffer().Cap())
	n, err := s.store.ReadFile(args[0], buf)
	if err != nil {
		s.Printf("Error: %v\n", err)
		return nil
	}
	if _, err := host.Inspect(s.loader.Region(), buf[:n]); err != nil {
		s.Printf("Error: %v\n", err)
		return nil
	}
	dst := StoreDevice + ":/" + args[1]
	if err := s.store.WriteFile(dst, buf[:n]); err != nil {
		s.Printf("Error: %v\n", err)
		return nil
	}
	s.Printf("Program '%s' stored as '%s' (%d bytes)\n", args[0], dst, n)
	return nil
}

func sys(_ context.Context, s *Shell, args []string) error {
	if len(args) == 0 {
		return checkArgs(1, args)
	}
	if args[0] != "loglevel" {
		return ErrInvalidArgument
	}
	if s.level == nil {
		return commandError("log level is fixed")
	}
	switch len(args) {
	case 1:
		s.Printf("Current log level: %s\n", s.level.Level())
	case 2:
		var l slog.Level
		if err := l.UnmarshalText([]byte(args[1])); err != nil {
			s.Printf("Failed to set new log level: %v\n", err)
			return nil
		}
		s.level.Set(l)
		s.Printf("New log level: %s\n", l)
	default:
		return checkArgs(2, args)
	}
	return nil
}

// printReport prints the report line for the image in ram.
func (s *Shell) printReport() {
	r, err := s.loader.Inspect()
	if err != nil {
		s.Printf("Error: %v\n", err)
		return
	}
	s.Println(r.String())
}
