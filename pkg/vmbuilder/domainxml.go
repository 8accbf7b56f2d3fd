package vmbuilder

import (
	"fmt"

	"github.com/flosch/pongo2"
)

// DiskRef is one disk entry in a domain XML template context.
type DiskRef struct {
	FileName     string
	TargetDevice string
}

// DomainContext is the variable set exposed to the embedded libvirt
// domain XML template (spec §4.6 "Domain definition").
type DomainContext struct {
	Hostname   string
	UUID       string
	MemSizeKiB int
	CPUs       int
	BootDisk   DiskRef
	ExtraDisks []DiskRef
	Interfaces []InterfaceInfo
}

// RenderDomainXML renders tplText against ctx using pongo2, the same
// templating library lxd/container_lxc.go uses for its LXC hook
// templates, generalized here to a libvirt domain document.
func RenderDomainXML(tplText string, ctx DomainContext) (string, error) {
	tpl, err := pongo2.FromString(tplText)
	if err != nil {
		return "", fmt.Errorf("parsing domain XML template: %w", err)
	}

	extraDisks := make([]pongo2.Context, 0, len(ctx.ExtraDisks))
	for _, d := range ctx.ExtraDisks {
		extraDisks = append(extraDisks, pongo2.Context{
			"file_name":     d.FileName,
			"target_device": d.TargetDevice,
		})
	}

	interfaces := make([]pongo2.Context, 0, len(ctx.Interfaces))
	for _, iface := range ctx.Interfaces {
		interfaces = append(interfaces, pongo2.Context{
			"ifname":         iface.IfName,
			"netname":        iface.NetName,
			"source_if":      iface.BridgeName,
			"mac_addr":       iface.MACAddr,
			"ipv4_addr":      iface.IPv4Addr,
			"ipv4_netlength": iface.IPv4NetLength,
			"dhcp4":          iface.DHCP4,
		})
	}

	out, err := tpl.Execute(pongo2.Context{
		"hostname":    ctx.Hostname,
		"uuid":        ctx.UUID,
		"memsize_kib": ctx.MemSizeKiB,
		"cpus":        ctx.CPUs,
		"boot_disk": pongo2.Context{
			"file_name":     ctx.BootDisk.FileName,
			"target_device": ctx.BootDisk.TargetDevice,
		},
		"extra_disks": extraDisks,
		"interfaces":  interfaces,
	})
	if err != nil {
		return "", fmt.Errorf("executing domain XML template: %w", err)
	}
	return out, nil
}
