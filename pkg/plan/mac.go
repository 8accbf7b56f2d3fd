package plan

import (
	"fmt"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/randmac"
)

// AssignMACs tops up the AF_PACKET address block of every network
// interface of every materialized node class, preserving the first
// node_count existing entries and filling the remainder with random
// 52:54:00 addresses, per spec §4.2.
func AssignMACs(classes map[string]*config.NodeClass) error {
	for className, nc := range classes {
		for slot, iface := range nc.NetworkInterfaces {
			if iface.AddrInfo == nil {
				iface.AddrInfo = map[string]*config.AddrBlock{}
			}
			block, ok := iface.AddrInfo[config.FamilyPacket]
			if !ok {
				block = &config.AddrBlock{}
				iface.AddrInfo[config.FamilyPacket] = block
			}

			macs, err := randmac.TopUp(block.Addresses, nc.NodeCount)
			if err != nil {
				return fmt.Errorf("node class %q interface %q: %w", className, slot, err)
			}
			block.Addresses = macs
		}
	}
	return nil
}
