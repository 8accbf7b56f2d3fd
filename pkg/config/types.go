// Package config holds the in-memory representation of a cluster
// configuration (spec §3) and the loader that turns a raw YAML document
// into fully-typed, validated planning structures in a single pass (spec
// DESIGN NOTES, "Dynamic config shapes").
package config

// Address families used as keys in addr_info / l3_configs maps.
const (
	FamilyInet   = "AF_INET"
	FamilyPacket = "AF_PACKET"
)

// Static address modes for an AF_INET interface block.
const (
	ModeStatic   = "static"
	ModeDynamic  = "dynamic"
	ModeReserved = "reserved"
)

// ClusterConfig is the top-level declarative cluster configuration (spec
// §3's ConfigModel).
type ClusterConfig struct {
	NodeClasses       map[string]*NodeClass     `yaml:"node_classes" mapstructure:"node_classes"`
	Networks          map[string]*VirtualNetwork `yaml:"networks" mapstructure:"networks"`
	HostBladeNetwork   *HostBladeNetworkInput    `yaml:"host_blade_network" mapstructure:"host_blade_network"`
	VMXMLTemplatePath string                     `yaml:"vm_xml_template_path" mapstructure:"vm_xml_template_path"`
	BuildDir          string                     `yaml:"build_dir" mapstructure:"build_dir"`
}

// HostBladeNetworkInput is the user-supplied input for the synthetic
// HostBladeNetwork (spec §3's "HostBladeNetwork").
type HostBladeNetworkInput struct {
	CIDR string `yaml:"cidr" mapstructure:"cidr"`

	// BridgeDevice names the bridge already present on every blade that
	// the synthetic host-blade interface attaches to. Defaults to
	// plan.DefaultHostBladeBridge when empty.
	BridgeDevice string `yaml:"bridge_device,omitempty" mapstructure:"bridge_device"`
}

// NodeClass is a named template for a guest (spec §3).
type NodeClass struct {
	BaseName        string                        `yaml:"base_name" mapstructure:"base_name"`
	NodeNames       []string                       `yaml:"node_names,omitempty" mapstructure:"node_names"`
	NodeCount       int                            `yaml:"node_count" mapstructure:"node_count"`
	PureBaseClass   bool                           `yaml:"pure_base_class,omitempty" mapstructure:"pure_base_class"`
	Parent          string                         `yaml:"parent,omitempty" mapstructure:"parent"`
	HostBlade       HostBladeRef                    `yaml:"host_blade" mapstructure:"host_blade"`
	NetworkInterfaces map[string]*NetworkInterface `yaml:"network_interfaces,omitempty" mapstructure:"network_interfaces"`
	VirtualMachine  *VirtualMachineSpec            `yaml:"virtual_machine,omitempty" mapstructure:"virtual_machine"`

	// VMXMLTemplate is populated by the controller's PlanBuilder (spec
	// §4.2 "XML template embedding") and is absent from user input.
	VMXMLTemplate string `yaml:"vm_xml_template,omitempty" mapstructure:"vm_xml_template"`
}

// HostBladeRef names the blade class that hosts a node class and how many
// node instances of that class may run per blade.
type HostBladeRef struct {
	BladeClass      string `yaml:"blade_class" mapstructure:"blade_class"`
	InstanceCapacity int   `yaml:"instance_capacity" mapstructure:"instance_capacity"`
}

// NetworkInterface is a logical-slot network attachment on a NodeClass
// (spec §3).
type NetworkInterface struct {
	ClusterNetwork string             `yaml:"cluster_network" mapstructure:"cluster_network"`
	Delete         bool               `yaml:"delete,omitempty" mapstructure:"delete"`
	AddrInfo       map[string]*AddrBlock `yaml:"addr_info,omitempty" mapstructure:"addr_info"`
}

// AddrBlock is one address-family block of a NetworkInterface. Only the
// fields relevant to its family are populated: AF_INET uses Mode/
// Addresses/HostnameSuffix, AF_PACKET uses only Addresses (MACs).
type AddrBlock struct {
	Mode           string   `yaml:"mode,omitempty" mapstructure:"mode"`
	Addresses      []string `yaml:"addresses,omitempty" mapstructure:"addresses"`
	HostnameSuffix string   `yaml:"hostname_suffix,omitempty" mapstructure:"hostname_suffix"`
}

// VirtualMachineSpec describes the libvirt domain shape for a NodeClass
// (spec §3).
type VirtualMachineSpec struct {
	CPUCount        int              `yaml:"cpu_count" mapstructure:"cpu_count"`
	MemorySizeMiB   int              `yaml:"memory_size_mib" mapstructure:"memory_size_mib"`
	BootDisk        *Disk            `yaml:"boot_disk" mapstructure:"boot_disk"`
	AdditionalDisks map[string]*Disk `yaml:"additional_disks,omitempty" mapstructure:"additional_disks"`
}

// Disk describes one boot or additional disk (spec §3).
type Disk struct {
	TargetDevice string                `yaml:"target_device" mapstructure:"target_device"`
	Delete       bool                  `yaml:"delete,omitempty" mapstructure:"delete"`
	DiskSizeMB   int                   `yaml:"disk_size_mb,omitempty" mapstructure:"disk_size_mb"`
	SourceImage  string                `yaml:"source_image,omitempty" mapstructure:"source_image"`
	Partitions   map[string]*Partition `yaml:"partitions,omitempty" mapstructure:"partitions"`
}

// Partition is one partition entry of a Disk.
type Partition struct {
	Delete bool `yaml:"delete,omitempty" mapstructure:"delete"`
	SizeMB int  `yaml:"size_mb,omitempty" mapstructure:"size_mb"`
}

// VirtualNetwork is a named overlay network spanning blades (spec §3).
type VirtualNetwork struct {
	NetworkName          string                 `yaml:"network_name" mapstructure:"network_name"`
	Delete               bool                   `yaml:"delete,omitempty" mapstructure:"delete"`
	BladeInterconnect    string                 `yaml:"blade_interconnect,omitempty" mapstructure:"blade_interconnect"`
	ConnectedBladeClasses []string              `yaml:"connected_blade_classes,omitempty" mapstructure:"connected_blade_classes"`
	TunnelID             int                    `yaml:"tunnel_id" mapstructure:"tunnel_id"`
	Devices              DevicesSpec            `yaml:"devices" mapstructure:"devices"`
	L3Configs            map[string]*L3Config   `yaml:"l3_configs,omitempty" mapstructure:"l3_configs"`

	// EndpointIPs is populated by the controller's PlanBuilder (spec §4.2).
	EndpointIPs []string `yaml:"endpoint_ips,omitempty" mapstructure:"endpoint_ips"`
}

// DevicesSpec names the tunnel/bridge device names for a VirtualNetwork.
type DevicesSpec struct {
	Tunnel     string      `yaml:"tunnel" mapstructure:"tunnel"`
	BridgeName string      `yaml:"bridge_name" mapstructure:"bridge_name"`
	Local      *LocalDevice `yaml:"local,omitempty" mapstructure:"local"`
}

// LocalDevice is the blade-side veth peer/interface for a VirtualNetwork,
// present only on blades that own an endpoint on the overlay.
type LocalDevice struct {
	Peer      string `yaml:"peer" mapstructure:"peer"`
	Interface string `yaml:"interface" mapstructure:"interface"`
}

// L3Config is one address-family's L3 configuration for a VirtualNetwork.
// Only AF_INET is modeled; spec scopes DHCP/CIDR handling to IPv4.
type L3Config struct {
	CIDR        string       `yaml:"cidr" mapstructure:"cidr"`
	Gateway     string       `yaml:"gateway,omitempty" mapstructure:"gateway"`
	NameServers []string     `yaml:"name_servers,omitempty" mapstructure:"name_servers"`
	DHCP        *DHCPConfig  `yaml:"dhcp,omitempty" mapstructure:"dhcp"`
}

// DHCPConfig describes the DHCPv4 service to stand up for a network (spec
// §3, §4.7).
type DHCPConfig struct {
	Enabled   bool           `yaml:"enabled" mapstructure:"enabled"`
	BladeHost BladeHostRef   `yaml:"blade_host" mapstructure:"blade_host"`
	Pools     []DHCPPool     `yaml:"pools,omitempty" mapstructure:"pools"`
}

// BladeHostRef names the single blade that hosts DHCP for a network.
type BladeHostRef struct {
	BladeClass    string `yaml:"blade_class" mapstructure:"blade_class"`
	BladeInstance int    `yaml:"blade_instance" mapstructure:"blade_instance"`
	BladeIP       string `yaml:"blade_ip,omitempty" mapstructure:"blade_ip"`
}

// DHCPPool is one allocation pool within a subnet.
type DHCPPool struct {
	Start string `yaml:"start" mapstructure:"start"`
	End   string `yaml:"end" mapstructure:"end"`
}
