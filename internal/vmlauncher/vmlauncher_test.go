package vmlauncher

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte{}, 0o600); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func TestValidateRequiresRunnerAndDisk(t *testing.T) {
	t.Parallel()

	o := options{}
	if err := o.validate(); err == nil {
		t.Fatal("expected an error when --runner and --disk are missing")
	}
}

func TestValidateRejectsMissingKernelUnlessEFI(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := filepath.Join(dir, "runner")
	disk := filepath.Join(dir, "disk.img")
	touch(t, runner)
	touch(t, disk)

	o := options{runner: runner, disk: disk}
	if err := o.validate(); err == nil {
		t.Fatal("expected an error when --kernel is missing and --efi is false")
	}
}

func TestValidateAllowsEFIWithoutKernel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := filepath.Join(dir, "runner")
	disk := filepath.Join(dir, "disk.img")
	touch(t, runner)
	touch(t, disk)

	o := options{runner: runner, disk: disk, efi: true}
	if err := o.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsSwiftScriptRunner(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := filepath.Join(dir, "runner.swift")
	disk := filepath.Join(dir, "disk.img")
	touch(t, runner)
	touch(t, disk)

	o := options{runner: runner, disk: disk, efi: true}
	if err := o.validate(); err == nil {
		t.Fatal("expected an error for a .swift runner script")
	}
}

func TestValidateRejectsMissingSharedDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := filepath.Join(dir, "runner")
	disk := filepath.Join(dir, "disk.img")
	touch(t, runner)
	touch(t, disk)

	o := options{runner: runner, disk: disk, efi: true, sharedDir: filepath.Join(dir, "missing")}
	if err := o.validate(); err == nil {
		t.Fatal("expected an error for a nonexistent shared dir")
	}
}

func TestBuildArgsOmitsKernelInitrdForEFI(t *testing.T) {
	t.Parallel()

	o := options{efi: true, disk: "disk.img", cpus: 2, memoryMB: 256, vsockPort: 4040}
	args := o.buildArgs()
	for _, a := range args {
		if a == "--kernel" || a == "--initrd" {
			t.Fatalf("buildArgs included %q for an EFI boot", a)
		}
	}
}

func TestBuildArgsIncludesKernelInitrdWhenSet(t *testing.T) {
	t.Parallel()

	o := options{kernel: "vmlinuz", initrd: "initrd.img", disk: "disk.img", cpus: 1, memoryMB: 512, vsockPort: 4040}
	args := o.buildArgs()
	found := map[string]bool{}
	for i, a := range args {
		if a == "--kernel" && i+1 < len(args) && args[i+1] == "vmlinuz" {
			found["kernel"] = true
		}
		if a == "--initrd" && i+1 < len(args) && args[i+1] == "initrd.img" {
			found["initrd"] = true
		}
	}
	if !found["kernel"] || !found["initrd"] {
		t.Fatalf("buildArgs = %v, missing --kernel/--initrd pass-through", args)
	}
}
