// Package dhcp implements DhcpRenderer (spec §4.7): assembling a Kea
// DHCPv4 config for every network this blade hosts DHCP for, writing it,
// and restarting/polling kea-dhcp4-server. Grounded on spec §4.7's
// literal Kea config shape and on LXD's dnsmasq package's
// "compute-desired-state, marshal, restart" idiom (source not retrieved
// beyond its test, so the typed assembly here is authored fresh in the
// same shape).
package dhcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

// ConfigPath is where the rendered Kea config is written (spec §4.7).
const ConfigPath = "/etc/kea/kea-dhcp4.conf"

const (
	validLifetimeSeconds = 4000
	renewTimerSeconds    = 1000
	rebindTimerSeconds   = 2000
	lfcIntervalSeconds   = 1800
	leaseFilePath        = "/var/lib/kea/kea-leases4.csv"

	restartServiceName = "kea-dhcp4-server"
	pollInterval        = time.Second
	pollAttempts         = 30
)

// InterfaceBinding is one node-class interface connected to a DHCP
// network, carrying the per-instance MAC/IP pairs needed for
// reservations.
type InterfaceBinding struct {
	MACs []string
	IPs  []string
}

// NetworkInput is everything the renderer needs about one DHCP-enabled
// network (spec §4.7).
type NetworkInput struct {
	CIDR              string
	LocalInterface    string
	Pools             []config.DHCPPool
	Routers           []string
	DomainNameServers []string
	Bindings          []InterfaceBinding
}

type keaReservation struct {
	HWAddress string `json:"hw-address"`
	IPAddress string `json:"ip-address"`
}

type keaOptionData struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

type keaPool struct {
	Pool string `json:"pool"`
}

type keaSubnet struct {
	Subnet       string            `json:"subnet"`
	Interface    string            `json:"interface"`
	Pools        []keaPool         `json:"pools,omitempty"`
	OptionData   []keaOptionData   `json:"option-data,omitempty"`
	Reservations []keaReservation  `json:"reservations,omitempty"`
}

type keaLeaseDatabase struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	LFCInterval      int    `json:"lfc-interval"`
}

type keaDHCP4 struct {
	ValidLifetime   int               `json:"valid-lifetime"`
	RenewTimer      int               `json:"renew-timer"`
	RebindTimer     int               `json:"rebind-timer"`
	InterfacesConfig keaInterfacesConfig `json:"interfaces-config"`
	LeaseDatabase   keaLeaseDatabase  `json:"lease-database"`
	Subnet4         []keaSubnet       `json:"subnet4"`
}

type keaInterfacesConfig struct {
	Interfaces []string `json:"interfaces"`
}

type keaDocument struct {
	DHCP4 keaDHCP4 `json:"Dhcp4"`
}

// subnetReservations builds one host reservation per instance, length
// min(len(macs), len(ips)) per spec §4.7 step 1.
func subnetReservations(bindings []InterfaceBinding) []keaReservation {
	var out []keaReservation
	for _, b := range bindings {
		n := len(b.MACs)
		if len(b.IPs) < n {
			n = len(b.IPs)
		}
		for i := 0; i < n; i++ {
			out = append(out, keaReservation{HWAddress: b.MACs[i], IPAddress: b.IPs[i]})
		}
	}
	return out
}

// Render assembles the full Kea DHCPv4 config JSON for the networks this
// blade hosts DHCP for (spec §4.7 steps 1-2 plus the global wrap).
func Render(networks map[string]NetworkInput) ([]byte, error) {
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)

	var subnets []keaSubnet
	var listenInterfaces []string

	for _, name := range names {
		n := networks[name]
		if n.LocalInterface == "" {
			return nil, fmt.Errorf("network %q: local interface is required to host DHCP", name)
		}
		listenInterfaces = append(listenInterfaces, n.LocalInterface)

		var pools []keaPool
		for _, p := range n.Pools {
			pools = append(pools, keaPool{Pool: fmt.Sprintf("%s-%s", p.Start, p.End)})
		}

		var options []keaOptionData
		if len(n.Routers) > 0 {
			options = append(options, keaOptionData{Name: "routers", Data: strings.Join(n.Routers, ",")})
		}
		if len(n.DomainNameServers) > 0 {
			options = append(options, keaOptionData{Name: "domain-name-servers", Data: strings.Join(n.DomainNameServers, ",")})
		}

		subnets = append(subnets, keaSubnet{
			Subnet:       n.CIDR,
			Interface:    n.LocalInterface,
			Pools:        pools,
			OptionData:   options,
			Reservations: subnetReservations(n.Bindings),
		})
	}

	doc := keaDocument{
		DHCP4: keaDHCP4{
			ValidLifetime: validLifetimeSeconds,
			RenewTimer:    renewTimerSeconds,
			RebindTimer:   rebindTimerSeconds,
			InterfacesConfig: keaInterfacesConfig{
				Interfaces: listenInterfaces,
			},
			LeaseDatabase: keaLeaseDatabase{
				Type:        "memfile",
				Name:        leaseFilePath,
				LFCInterval: lfcIntervalSeconds,
			},
			Subnet4: subnets,
		},
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling Kea config: %w", err)
	}
	return out, nil
}

// Activate restarts kea-dhcp4-server and polls until it reports active,
// per spec §4.7's final paragraph.
func Activate(ctx context.Context, runner subprocess.Runner, logDir string) error {
	if _, err := runner.Run(ctx, logDir, "kea-restart", "systemctl", "restart", restartServiceName); err != nil {
		return fmt.Errorf("restarting %s: %w", restartServiceName, err)
	}

	for attempt := 0; attempt < pollAttempts; attempt++ {
		res, err := runner.Run(ctx, logDir, "kea-is-active", "systemctl", "--quiet", "is-active", restartServiceName)
		if err == nil {
			_ = res
			return nil
		}
		time.Sleep(pollInterval)
	}

	status, _ := runner.Run(ctx, logDir, "kea-status", "systemctl", "status", restartServiceName)
	return fmt.Errorf("%s never became active:\n%s", restartServiceName, status.Stdout)
}
