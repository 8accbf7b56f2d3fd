// Package netrecon implements NetworkReconciler (spec §4.5): the
// blade-side VXLAN/bridge/FDB/libvirt-network reconciliation that brings
// each in-scope overlay network up on a blade. Grounded on spec §4.5's
// literal command contract and on
// other_examples/9c2a6fc9_forwardnetworks-clabernetes__launcher-connectivity-vxlan.go.go's
// teardown-before-create idiom for tunnel interfaces.
package netrecon

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

// LinkInfo is the subset of `ip -d --json addr` per-link output this
// package needs.
type LinkInfo struct {
	IfName   string       `json:"ifname"`
	LinkInfo linkInfoKind `json:"linkinfo"`
	AddrInfo []AddrInfo   `json:"addr_info"`
}

type linkInfoKind struct {
	InfoKind string `json:"info_kind"`
}

// AddrInfo is one address entry under a link (the "local" field is the
// address assigned to that link).
type AddrInfo struct {
	Family string `json:"family"`
	Local  string `json:"local"`
}

// FDBEntry is one `bridge --json fdb` entry.
type FDBEntry struct {
	Mac   string `json:"mac"`
	IfName string `json:"ifname"`
	Dst   string `json:"dst,omitempty"`
}

// Discovery is the parsed state of the blade's current networking, built
// fresh before reconciling every in-scope network (spec §4.5
// "Discovery").
type Discovery struct {
	Links       map[string]LinkInfo
	FDBByIfName map[string][]FDBEntry
	LibvirtNets map[string]bool
}

// Discover runs `ip -d --json addr`, `bridge --json fdb`, and `virsh
// net-list --name`, parsing their output into lookup tables.
func Discover(ctx context.Context, runner subprocess.Runner, logDir string) (*Discovery, error) {
	d := &Discovery{
		Links:       map[string]LinkInfo{},
		FDBByIfName: map[string][]FDBEntry{},
		LibvirtNets: map[string]bool{},
	}

	addrRes, err := runner.Run(ctx, logDir, "ip-addr", "ip", "-d", "--json", "addr")
	if err != nil {
		return nil, fmt.Errorf("discovering links: %w", err)
	}
	var links []LinkInfo
	if err := json.Unmarshal([]byte(addrRes.Stdout), &links); err != nil {
		return nil, fmt.Errorf("parsing `ip -d --json addr` output: %w", err)
	}
	for _, l := range links {
		d.Links[l.IfName] = l
	}

	fdbRes, err := runner.Run(ctx, logDir, "bridge-fdb", "bridge", "--json", "fdb")
	if err != nil {
		return nil, fmt.Errorf("discovering FDB entries: %w", err)
	}
	var entries []FDBEntry
	if err := json.Unmarshal([]byte(fdbRes.Stdout), &entries); err != nil {
		return nil, fmt.Errorf("parsing `bridge --json fdb` output: %w", err)
	}
	for _, e := range entries {
		d.FDBByIfName[e.IfName] = append(d.FDBByIfName[e.IfName], e)
	}

	virshRes, err := runner.Run(ctx, logDir, "virsh-net-list", "virsh", "net-list", "--name")
	if err != nil {
		return nil, fmt.Errorf("discovering libvirt networks: %w", err)
	}
	for _, line := range strings.Split(virshRes.Stdout, "\n") {
		name := strings.TrimSpace(line)
		if name != "" {
			d.LibvirtNets[name] = true
		}
	}

	return d, nil
}
