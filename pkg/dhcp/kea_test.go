package dhcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cray-HPE/vtds-cluster-kvm/pkg/config"
	"github.com/Cray-HPE/vtds-cluster-kvm/shared/subprocess"
)

func TestRender_BuildsSubnetWithReservationsAndPools(t *testing.T) {
	networks := map[string]NetworkInput{
		"mgmt-net": {
			CIDR:              "10.1.0.0/24",
			LocalInterface:    "br-mgmt",
			Pools:             []config.DHCPPool{{Start: "10.1.0.100", End: "10.1.0.200"}},
			Routers:           []string{"10.1.0.1"},
			DomainNameServers: []string{"10.1.0.1"},
			Bindings: []InterfaceBinding{
				{MACs: []string{"52:54:00:00:00:01", "52:54:00:00:00:02"}, IPs: []string{"10.1.0.10", "10.1.0.11"}},
			},
		},
	}

	raw, err := Render(networks)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	dhcp4 := doc["Dhcp4"].(map[string]any)
	assert.EqualValues(t, 4000, dhcp4["valid-lifetime"])
	assert.EqualValues(t, 1000, dhcp4["renew-timer"])
	assert.EqualValues(t, 2000, dhcp4["rebind-timer"])

	leaseDB := dhcp4["lease-database"].(map[string]any)
	assert.Equal(t, "memfile", leaseDB["type"])
	assert.EqualValues(t, 1800, leaseDB["lfc-interval"])

	subnets := dhcp4["subnet4"].([]any)
	require.Len(t, subnets, 1)
	subnet := subnets[0].(map[string]any)
	assert.Equal(t, "10.1.0.0/24", subnet["subnet"])
	assert.Equal(t, "br-mgmt", subnet["interface"])

	reservations := subnet["reservations"].([]any)
	require.Len(t, reservations, 2)
}

func TestActivate_PollsUntilActive(t *testing.T) {
	fake := subprocess.NewFake()
	err := Activate(context.Background(), fake, t.TempDir())
	require.NoError(t, err)

	var labels []string
	for _, inv := range fake.Invocations {
		labels = append(labels, inv.Label)
	}
	assert.Contains(t, labels, "kea-restart")
	assert.Contains(t, labels, "kea-is-active")
}

func TestActivate_FailsAfterPollAttemptsExhausted(t *testing.T) {
	fake := subprocess.NewFake()
	fake.Errs["kea-is-active"] = assertErr{}
	fake.Results["kea-status"] = subprocess.Result{Stdout: "inactive (dead)"}

	err := Activate(context.Background(), fake, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inactive (dead)")
}

type assertErr struct{}

func (assertErr) Error() string { return "not active" }
