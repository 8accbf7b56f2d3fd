// Package vmbuilder implements VirtualNodeBuilder (spec §4.6): the
// blade-side creation of KVM guest disks, netplan, and libvirt domains for
// every virtual node instance hosted on this blade. Grounded on spec
// §4.6's literal qemu-img/virt-customize/virsh command contract, with
// domain XML rendered through github.com/flosch/pongo2 the way
// lxd/container_lxc.go renders its LXC templates.
package vmbuilder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/logger"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

// DefaultBaseDir is the root of every class/instance directory tree
// (spec §4.6 "Directories"), used when Builder.BaseDir is unset.
const DefaultBaseDir = "/var/local/vtds"

// InstanceRange returns the [start, end) half-open range of instance
// indices of class that belong on bladeInstance, per spec §4.6:
// start = min(bladeInstance*capacity, nodeCount), end =
// min((bladeInstance+1)*capacity, nodeCount).
func InstanceRange(nodeCount, capacity, bladeInstance int) (start, end int) {
	start = bladeInstance * capacity
	if start > nodeCount {
		start = nodeCount
	}
	end = (bladeInstance + 1) * capacity
	if end > nodeCount {
		end = nodeCount
	}
	return start, end
}

// Hostname derives a node instance's hostname, per spec §4.6: an explicit
// node_names[instance] entry if present, else "{base_name}-{NNN}" with
// instance+1 zero-padded to 3 digits.
func Hostname(nc *config.NodeClass, instance int) string {
	if instance < len(nc.NodeNames) && nc.NodeNames[instance] != "" {
		return nc.NodeNames[instance]
	}
	return fmt.Sprintf("%s-%03d", nc.BaseName, instance+1)
}

// Builder creates VM disks, netplan, and libvirt domains for a node
// class's instances on this blade.
type Builder struct {
	Runner   subprocess.Runner
	LogDir   string
	Networks map[string]*config.VirtualNetwork

	// HostBladeBridge/HostBladeCIDR describe the synthetic host-blade
	// network (spec §3), which has no VirtualNetwork entry of its own.
	HostBladeBridge string
	HostBladeCIDR   string

	// BaseDir overrides DefaultBaseDir; empty means use DefaultBaseDir.
	BaseDir string

	// PasswdDir overrides the directory {hostname}-passwd.txt is written
	// to; empty means the current working directory, per spec §4.6.
	PasswdDir string
}

func (b *Builder) baseDir() string {
	if b.BaseDir != "" {
		return b.BaseDir
	}
	return DefaultBaseDir
}

// BuildClass provisions every instance of className that belongs on
// bladeInstance (spec §4.6).
func (b *Builder) BuildClass(ctx context.Context, className string, nc *config.NodeClass, bladeInstance int) error {
	capacity := nc.HostBlade.InstanceCapacity
	if capacity <= 0 {
		return fmt.Errorf("node class %q: host_blade.instance_capacity must be > 0", className)
	}

	start, end := InstanceRange(nc.NodeCount, capacity, bladeInstance)
	classDir := filepath.Join(b.baseDir(), className)
	if err := os.MkdirAll(classDir, 0o755); err != nil {
		return fmt.Errorf("creating class directory %s: %w", classDir, err)
	}

	for instance := start; instance < end; instance++ {
		hostname := Hostname(nc, instance)
		logger.Info("provisioning virtual node", logger.Ctx{"node_class": className, "instance": instance, "hostname": hostname})

		if err := b.buildInstance(ctx, className, nc, instance, hostname, classDir); err != nil {
			return fmt.Errorf("node %s instance %d (%s): %w", className, instance, hostname, err)
		}
	}
	return nil
}

func (b *Builder) buildInstance(ctx context.Context, className string, nc *config.NodeClass, instance int, hostname, classDir string) error {
	hostDir := filepath.Join(classDir, hostname)
	if err := os.MkdirAll(hostDir, 0o755); err != nil {
		return fmt.Errorf("creating node directory %s: %w", hostDir, err)
	}

	if nc.VirtualMachine == nil || nc.VirtualMachine.BootDisk == nil {
		return fmt.Errorf("virtual_machine.boot_disk is required")
	}

	bootDiskPath, err := b.createBootDisk(ctx, className, nc.VirtualMachine.BootDisk, classDir, hostDir)
	if err != nil {
		return fmt.Errorf("creating boot disk: %w", err)
	}

	extraDisks, err := b.createAdditionalDisks(ctx, nc.VirtualMachine.AdditionalDisks, hostDir)
	if err != nil {
		return fmt.Errorf("creating additional disks: %w", err)
	}

	interfaces, err := b.buildInterfaces(nc, instance)
	if err != nil {
		return fmt.Errorf("composing netplan interfaces: %w", err)
	}

	netplanYAML, err := RenderNetplan(interfaces)
	if err != nil {
		return fmt.Errorf("rendering netplan: %w", err)
	}
	netplanPath := filepath.Join(hostDir, "10-vtds-ethernets.yaml")
	if err := os.WriteFile(netplanPath, []byte(netplanYAML), 0o644); err != nil {
		return fmt.Errorf("writing netplan file %s: %w", netplanPath, err)
	}
	if _, err := b.Runner.Run(ctx, b.LogDir, "netplan-upload-"+hostname, "virt-customize",
		"-a", bootDiskPath, "--upload", netplanPath+":/etc/netplan/10-vtds-ethernets.yaml"); err != nil {
		return fmt.Errorf("uploading netplan: %w", err)
	}

	password := uuid.New().String()
	if _, err := b.Runner.Run(ctx, b.LogDir, "root-password-"+hostname, "virt-customize",
		"-a", bootDiskPath, "--root-password", "password:"+password); err != nil {
		return fmt.Errorf("setting root password: %w", err)
	}
	passwdDir := b.PasswdDir
	if passwdDir == "" {
		passwdDir = "."
	}
	passwdPath := filepath.Join(passwdDir, hostname+"-passwd.txt")
	if err := os.WriteFile(passwdPath, []byte(password+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", passwdPath, err)
	}

	if _, err := b.Runner.Run(ctx, b.LogDir, "ssh-regen-"+hostname, "virt-customize",
		"-a", bootDiskPath, "--run-command", "dpkg-reconfigure openssh-server"); err != nil {
		return fmt.Errorf("regenerating SSH host keys: %w", err)
	}

	domainXML, err := RenderDomainXML(nc.VMXMLTemplate, DomainContext{
		Hostname:     hostname,
		UUID:         uuid.New().String(),
		MemSizeKiB:   nc.VirtualMachine.MemorySizeMiB * 1024,
		CPUs:         nc.VirtualMachine.CPUCount,
		BootDisk:     DiskRef{FileName: bootDiskPath, TargetDevice: nc.VirtualMachine.BootDisk.TargetDevice},
		ExtraDisks:   extraDisks,
		Interfaces:   interfaces,
	})
	if err != nil {
		return fmt.Errorf("rendering domain XML: %w", err)
	}
	domainXMLPath := filepath.Join(hostDir, "domain.xml")
	if err := os.WriteFile(domainXMLPath, []byte(domainXML), 0o644); err != nil {
		return fmt.Errorf("writing domain XML %s: %w", domainXMLPath, err)
	}

	// Reconcile: best-effort teardown of any prior instance (spec §4.6
	// "Reconcile").
	_, _ = b.Runner.Run(ctx, b.LogDir, "virsh-destroy-"+hostname, "virsh", "destroy", hostname)
	_, _ = b.Runner.Run(ctx, b.LogDir, "virsh-undefine-"+hostname, "virsh", "undefine", hostname)

	if _, err := b.Runner.Run(ctx, b.LogDir, "virsh-define-"+hostname, "virsh", "define", domainXMLPath); err != nil {
		return fmt.Errorf("defining domain: %w", err)
	}
	if _, err := b.Runner.Run(ctx, b.LogDir, "virsh-start-"+hostname, "virsh", "start", hostname); err != nil {
		return fmt.Errorf("starting domain: %w", err)
	}

	return nil
}
