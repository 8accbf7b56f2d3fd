package vmbuilder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

func argsFor(fake *subprocess.Fake, label string) []string {
	for _, inv := range fake.Invocations {
		if inv.Label == label {
			return inv.Args
		}
	}
	return nil
}

func TestCreateAdditionalDisks_SizeOnlyHasNoBackingFile(t *testing.T) {
	fake := subprocess.NewFake()
	b := &Builder{Runner: fake}

	disks := map[string]*config.Disk{
		"scratch": {TargetDevice: "vdb", DiskSizeMB: 2048},
	}

	refs, err := b.createAdditionalDisks(context.Background(), disks, t.TempDir())
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "vdb", refs[0].TargetDevice)

	args := argsFor(fake, "qemu-img-create-scratch")
	require.NotNil(t, args)
	assert.NotContains(t, args, "-b")
	assert.Contains(t, args, "2048M")
}

func TestCreateAdditionalDisks_SourceImageAndPartitionsRejected(t *testing.T) {
	fake := subprocess.NewFake()
	b := &Builder{Runner: fake}

	disks := map[string]*config.Disk{
		"scratch": {
			TargetDevice: "vdb",
			SourceImage:  "/images/scratch.qcow2",
			Partitions:   map[string]*config.Partition{"p1": {SizeMB: 512}},
		},
	}

	_, err := b.createAdditionalDisks(context.Background(), disks, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestCreateAdditionalDisks_MissingSizeSourceOrPartitionsRejected(t *testing.T) {
	fake := subprocess.NewFake()
	b := &Builder{Runner: fake}

	disks := map[string]*config.Disk{
		"scratch": {TargetDevice: "vdb"},
	}

	_, err := b.createAdditionalDisks(context.Background(), disks, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must declare one of")
}

func TestCreateAdditionalDisks_MissingTargetDeviceRejected(t *testing.T) {
	fake := subprocess.NewFake()
	b := &Builder{Runner: fake}

	disks := map[string]*config.Disk{
		"scratch": {DiskSizeMB: 1024},
	}

	_, err := b.createAdditionalDisks(context.Background(), disks, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target_device is required")
}

func TestCreateAdditionalDisks_PartitionsSizePartitionsDisk(t *testing.T) {
	fake := subprocess.NewFake()
	b := &Builder{Runner: fake}

	disks := map[string]*config.Disk{
		"scratch": {
			TargetDevice: "vdb",
			Partitions: map[string]*config.Partition{
				"p1": {SizeMB: 512},
				"p2": {SizeMB: 256},
			},
		},
	}

	_, err := b.createAdditionalDisks(context.Background(), disks, t.TempDir())
	require.NoError(t, err)

	createArgs := argsFor(fake, "qemu-img-create-scratch")
	require.NotNil(t, createArgs)
	assert.Contains(t, createArgs, "768M")

	assert.NotNil(t, argsFor(fake, "sgdisk-scratch.img-p1"))
	assert.NotNil(t, argsFor(fake, "sgdisk-scratch.img-p2"))
}

func TestCreateBootDisk_NoSourceImageHasNoBacking(t *testing.T) {
	fake := subprocess.NewFake()
	b := &Builder{Runner: fake}

	disk := &config.Disk{DiskSizeMB: 4096}
	_, err := b.createBootDisk(context.Background(), "compute", disk, t.TempDir(), t.TempDir())
	require.NoError(t, err)

	var found bool
	for _, inv := range fake.Invocations {
		if inv.Name == "qemu-img" {
			assert.NotContains(t, inv.Args, "-b")
			found = true
		}
	}
	assert.True(t, found)
}
