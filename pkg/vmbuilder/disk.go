package vmbuilder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

// createBootDisk implements spec §4.6 "Boot disk": a one-time-per-class
// shared source image download, then a per-instance qcow2 disk backed by
// it, chowned to libvirt-qemu:kvm.
func (b *Builder) createBootDisk(ctx context.Context, className string, disk *config.Disk, classDir, hostDir string) (string, error) {
	var backing string
	if disk.SourceImage != "" {
		var err error
		backing, err = b.ensureSharedImage(ctx, disk.SourceImage, classDir)
		if err != nil {
			return "", err
		}
	}

	diskPath := filepath.Join(hostDir, "boot_disk.img")
	args := []string{"create"}
	if backing != "" {
		args = append(args, "-b", backing, "-F", "qcow2")
	}
	args = append(args, "-f", "qcow2", diskPath)
	if disk.DiskSizeMB > 0 {
		args = append(args, fmt.Sprintf("%dM", disk.DiskSizeMB))
	}

	if _, err := b.Runner.Run(ctx, b.LogDir, "qemu-img-create-"+filepath.Base(hostDir), "qemu-img", args...); err != nil {
		return "", fmt.Errorf("creating boot disk %s: %w", diskPath, err)
	}

	if err := b.chown(ctx, diskPath); err != nil {
		return "", err
	}
	return diskPath, nil
}

// createAdditionalDisks implements spec §4.6 "Additional disks": each
// entry must declare target_device and at least one of
// source_image|partitions|disk_size_mb; declaring both source_image and
// partitions is an error.
func (b *Builder) createAdditionalDisks(ctx context.Context, disks map[string]*config.Disk, hostDir string) ([]DiskRef, error) {
	names := make([]string, 0, len(disks))
	for name := range disks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]DiskRef, 0, len(names))
	for _, name := range names {
		disk := disks[name]
		if disk.TargetDevice == "" {
			return nil, fmt.Errorf("additional disk %q: target_device is required", name)
		}
		hasPartitions := len(disk.Partitions) > 0
		if disk.SourceImage == "" && !hasPartitions && disk.DiskSizeMB == 0 {
			return nil, fmt.Errorf("additional disk %q: must declare one of source_image, partitions, or disk_size_mb", name)
		}
		if disk.SourceImage != "" && hasPartitions {
			return nil, fmt.Errorf("additional disk %q: source_image and partitions are mutually exclusive", name)
		}

		diskPath := filepath.Join(hostDir, name+".img")
		args := []string{"create"}
		if disk.SourceImage != "" {
			args = append(args, "-b", disk.SourceImage, "-F", "qcow2")
		}
		args = append(args, "-f", "qcow2", diskPath)
		if disk.DiskSizeMB > 0 {
			args = append(args, fmt.Sprintf("%dM", disk.DiskSizeMB))
		} else if hasPartitions {
			args = append(args, fmt.Sprintf("%dM", totalPartitionsMB(disk.Partitions)))
		}

		if _, err := b.Runner.Run(ctx, b.LogDir, "qemu-img-create-"+name, "qemu-img", args...); err != nil {
			return nil, fmt.Errorf("creating additional disk %q: %w", name, err)
		}
		if err := b.chown(ctx, diskPath); err != nil {
			return nil, err
		}

		if hasPartitions {
			if err := b.partitionDisk(ctx, diskPath, disk.Partitions); err != nil {
				return nil, fmt.Errorf("partitioning additional disk %q: %w", name, err)
			}
		}

		out = append(out, DiskRef{FileName: diskPath, TargetDevice: disk.TargetDevice})
	}
	return out, nil
}

func totalPartitionsMB(partitions map[string]*config.Partition) int {
	total := 0
	for _, p := range partitions {
		total += p.SizeMB
	}
	return total
}

// partitionDisk lays out disk.Partitions on diskPath using sgdisk, one
// numbered partition per entry in sorted name order.
func (b *Builder) partitionDisk(ctx context.Context, diskPath string, partitions map[string]*config.Partition) error {
	names := make([]string, 0, len(partitions))
	for name := range partitions {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		idx := i + 1
		spec := fmt.Sprintf("%d:0:+%dM", idx, partitions[name].SizeMB)
		if _, err := b.Runner.Run(ctx, b.LogDir, fmt.Sprintf("sgdisk-%s-%s", filepath.Base(diskPath), name),
			"sgdisk", "-n", spec, diskPath); err != nil {
			return fmt.Errorf("creating partition %q: %w", name, err)
		}
	}
	return nil
}

// ensureSharedImage downloads url once per class to classDir, skipping
// the download if the destination already exists (spec §4.6 "download it
// once per class").
func (b *Builder) ensureSharedImage(ctx context.Context, url, classDir string) (string, error) {
	dest := filepath.Join(classDir, filepath.Base(url))
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if _, err := b.Runner.Run(ctx, b.LogDir, "curl-"+filepath.Base(dest), "curl", "-o", dest, "-s", url); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("downloading shared source image %s: %w", url, err)
	}
	return dest, nil
}

// chown sets diskPath's ownership to libvirt-qemu:kvm (spec §4.6).
func (b *Builder) chown(ctx context.Context, diskPath string) error {
	if _, err := b.Runner.Run(ctx, b.LogDir, "chown-"+filepath.Base(diskPath), "chown", "libvirt-qemu:kvm", diskPath); err != nil {
		return fmt.Errorf("chowning %s: %w", diskPath, err)
	}
	return nil
}
