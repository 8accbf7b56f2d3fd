package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
)

func TestAssignMACs_PreservesExistingAndTopsUp(t *testing.T) {
	classes := map[string]*config.NodeClass{
		"compute": {
			NodeCount: 3,
			NetworkInterfaces: map[string]*config.NetworkInterface{
				"mgmt": {
					AddrInfo: map[string]*config.AddrBlock{
						config.FamilyPacket: {Addresses: []string{"52:54:00:00:00:01"}},
					},
				},
				"fresh": {},
			},
		},
	}

	err := AssignMACs(classes)
	require.NoError(t, err)

	mgmt := classes["compute"].NetworkInterfaces["mgmt"].AddrInfo[config.FamilyPacket]
	require.Len(t, mgmt.Addresses, 3)
	assert.Equal(t, "52:54:00:00:00:01", mgmt.Addresses[0])
	for _, mac := range mgmt.Addresses {
		assert.Contains(t, mac, "52:54:00")
	}

	fresh := classes["compute"].NetworkInterfaces["fresh"].AddrInfo[config.FamilyPacket]
	require.NotNil(t, fresh)
	assert.Len(t, fresh.Addresses, 3)
}
