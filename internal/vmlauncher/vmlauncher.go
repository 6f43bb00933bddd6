// Package vmlauncher implements the "launch-vm" CLI subcommand: it
// validates the arguments for booting a guest VM and execs an external
// helper binary with a pass-through argument list. It never boots a VM
// itself; it is a thin, validated wrapper around that helper.
package vmlauncher

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

type options struct {
	runner     string
	kernel     string
	initrd     string
	disk       string
	seed       string
	cpus       uint
	memoryMB   uint64
	vsockPort  uint
	bridgePort uint
	cmdline    string
	consoleLog string
	statusLog  string
	efi        bool
	efiVars    string
	sharedDir  string
}

// Main parses launch-vm flags, validates the referenced paths, and execs
// the guest runner helper with the equivalent flags. It returns a non-nil
// error on any validation failure or on a non-zero helper exit.
func Main(args []string) error {
	fs := flag.NewFlagSet("launch-vm", flag.ContinueOnError)
	opts := options{}
	fs.StringVar(&opts.runner, "runner", "", "path to the compiled guest runner binary (required)")
	fs.StringVar(&opts.kernel, "kernel", "", "path to the guest kernel image (required unless --efi)")
	fs.StringVar(&opts.initrd, "initrd", "", "path to the guest initrd (required unless --efi)")
	fs.StringVar(&opts.disk, "disk", "", "path to the guest disk image (required)")
	fs.StringVar(&opts.seed, "seed", "", "path to a cloud-init seed image (optional)")
	fs.UintVar(&opts.cpus, "cpus", 1, "guest vCPU count")
	fs.Uint64Var(&opts.memoryMB, "memory-mb", 512, "guest memory in megabytes")
	fs.UintVar(&opts.vsockPort, "vsock-port", 4040, "vsock port the guest daemon listens on")
	fs.UintVar(&opts.bridgePort, "bridge-port", 0, "host bridge port, if any")
	fs.StringVar(&opts.cmdline, "cmdline", "", "extra kernel command line arguments")
	fs.StringVar(&opts.consoleLog, "console-log", "", "path to write guest console output")
	fs.StringVar(&opts.statusLog, "status-log", "", "path to write guest boot status")
	fs.BoolVar(&opts.efi, "efi", false, "boot via EFI instead of a direct kernel/initrd")
	fs.StringVar(&opts.efiVars, "efi-vars", "", "path to an EFI variable store (only with --efi)")
	fs.StringVar(&opts.sharedDir, "shared-dir", "", "host directory to share into the guest (optional)")
	confirm := fs.Bool("confirm", false, "show an interactive confirmation prompt before launching")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := opts.validate(); err != nil {
		return err
	}

	if *confirm {
		ok, err := confirmLaunch(os.Stdin, os.Stdout, opts)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("launch-vm: cancelled by operator")
		}
	}

	cmd := exec.Command(opts.runner, opts.buildArgs()...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("guest runner failed: %w", err)
	}
	return nil
}

func (o options) validate() error {
	if o.runner == "" {
		return fmt.Errorf("launch-vm: --runner is required")
	}
	if o.disk == "" {
		return fmt.Errorf("launch-vm: --disk is required")
	}
	if err := requireExists("runner", o.runner); err != nil {
		return err
	}
	if err := requireExists("disk", o.disk); err != nil {
		return err
	}
	if filepath.Ext(o.runner) == ".swift" {
		return fmt.Errorf("launch-vm: guest runner must be a compiled binary, not a .swift script")
	}
	if !o.efi {
		if o.kernel == "" {
			return fmt.Errorf("launch-vm: --kernel is required unless --efi")
		}
		if o.initrd == "" {
			return fmt.Errorf("launch-vm: --initrd is required unless --efi")
		}
		if err := requireExists("kernel", o.kernel); err != nil {
			return err
		}
		if err := requireExists("initrd", o.initrd); err != nil {
			return err
		}
	}
	if o.sharedDir != "" {
		if err := requireExists("shared-dir", o.sharedDir); err != nil {
			return err
		}
	}
	if o.seed != "" {
		if err := requireExists("seed", o.seed); err != nil {
			return err
		}
	}
	return nil
}

func requireExists(label, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("launch-vm: %s not found: %s", label, path)
	}
	return nil
}

func (o options) buildArgs() []string {
	var args []string
	if !o.efi {
		args = append(args, "--kernel", o.kernel, "--initrd", o.initrd)
	}
	args = append(args,
		"--disk", o.disk,
		"--cpus", strconv.FormatUint(uint64(o.cpus), 10),
		"--memory-bytes", strconv.FormatUint(o.memoryMB*1024*1024, 10),
		"--vsock-port", strconv.FormatUint(uint64(o.vsockPort), 10),
	)
	if o.seed != "" {
		args = append(args, "--seed", o.seed)
	}
	if o.bridgePort != 0 {
		args = append(args, "--bridge-port", strconv.FormatUint(uint64(o.bridgePort), 10))
	}
	if o.cmdline != "" {
		args = append(args, "--cmdline", o.cmdline)
	}
	if o.consoleLog != "" {
		args = append(args, "--console-log", o.consoleLog)
	}
	if o.statusLog != "" {
		args = append(args, "--status-log", o.statusLog)
	}
	if o.efi {
		args = append(args, "--efi")
	}
	if o.efiVars != "" {
		args = append(args, "--efi-vars", o.efiVars)
	}
	if o.sharedDir != "" {
		args = append(args, "--shared-dir", o.sharedDir)
	}
	return args
}
