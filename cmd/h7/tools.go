package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/reglet-dev/h7-kernel/application/config"
	"github.com/reglet-dev/h7-kernel/application/schema"
	"github.com/reglet-dev/h7-kernel/domain/guard"
	"github.com/reglet-dev/h7-kernel/domain/image"
	"github.com/reglet-dev/h7-kernel/host"
)

func cmdMkapp(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("mkapp", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "board configuration file")
	entryFlag := fs.String("entry", "", "entry word for a bare code section; the input then has no header")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("mkapp: expected <in> <out>, got %d arguments", fs.NArg())
	}
	in, out := fs.Arg(0), fs.Arg(1)

	cfg, err := loadBoard(*cfgPath)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("mkapp: %w", err)
	}

	var (
		img   []byte
		entry image.Entry
	)
	if *entryFlag != "" {
		v, err := strconv.ParseUint(*entryFlag, 0, 32)
		if err != nil {
			return fmt.Errorf("mkapp: entry %q: %w", *entryFlag, err)
		}
		entry = image.Entry(v)
		img = image.Build(entry, raw)
	} else {
		img, entry, _, err = image.Package(raw)
		if err != nil {
			return fmt.Errorf("mkapp: %s: %w", in, err)
		}
	}
	crc := image.Checksum(img[:len(img)-image.TrailerSize])

	fmt.Fprintf(stdout, "input = %s\noutput = %s\n", in, out)
	ep, checkErr := guard.Check(cfg.AppRegion(), entry)
	fmt.Fprintf(stdout, "Boot address: 0x%08x (%s)\n", uint32(entry), guard.Describe(ep, checkErr))
	fmt.Fprintf(stdout, "CRC: 0x%08x\n", crc)

	if err := os.WriteFile(out, img, 0o644); err != nil {
		return fmt.Errorf("mkapp: %w", err)
	}
	fmt.Fprintf(stdout, "Size: %d bytes\nDone\n", len(img))
	return nil
}

func cmdInfo(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "board configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("info: expected <image>, got %d arguments", fs.NArg())
	}

	cfg, err := loadBoard(*cfgPath)
	if err != nil {
		return err
	}
	img, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	rep, err := host.Inspect(cfg.AppRegion(), img)
	if err != nil {
		return fmt.Errorf("info: %s: %w", fs.Arg(0), err)
	}
	fmt.Fprintln(stdout, rep)
	return nil
}

func cmdSchema(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("schema", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := schema.GenerateSchema(config.Board{})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(out))
	return err
}
