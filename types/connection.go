// Package types holds the data model shared by C1, C2 and C3 (spec §3).
package types

import (
	"fmt"
	"regexp"

	"github.com/gravitational/trace"
)

// Protocol is the closed set of connection protocols from spec §3.
type Protocol string

const (
	ProtocolSSH        Protocol = "ssh"
	ProtocolRDP        Protocol = "rdp"
	ProtocolVNC        Protocol = "vnc"
	ProtocolSPICE      Protocol = "spice"
	ProtocolTelnet     Protocol = "telnet"
	ProtocolSerial     Protocol = "serial"
	ProtocolKubernetes Protocol = "kubernetes"
	ProtocolZeroTrust  Protocol = "zerotrust"
)

var validProtocols = map[Protocol]bool{
	ProtocolSSH: true, ProtocolRDP: true, ProtocolVNC: true, ProtocolSPICE: true,
	ProtocolTelnet: true, ProtocolSerial: true, ProtocolKubernetes: true, ProtocolZeroTrust: true,
}

// Validate reports whether p is a member of the closed protocol set.
func (p Protocol) Validate() error {
	if !validProtocols[p] {
		return trace.BadParameter("unknown protocol %q", p)
	}
	return nil
}

// PasswordSource is the tagged union of spec §3. Implementations are
// VaultSource, PromptSource, VariableSource, InheritSource and NoneSource;
// the unexported method keeps the set closed to this package. The compiler
// does not check that a type switch over it (lib/vault.Resolver) covers
// every case.
type PasswordSource interface {
	passwordSource()
	String() string
}

type VaultSource struct{}

func (VaultSource) passwordSource() {}
func (VaultSource) String() string  { return "vault" }

type PromptSource struct{}

func (PromptSource) passwordSource() {}
func (PromptSource) String() string  { return "prompt" }

type VariableSource struct{ Name string }

func (VariableSource) passwordSource()      {}
func (v VariableSource) String() string     { return fmt.Sprintf("variable(%s)", v.Name) }

type InheritSource struct{}

func (InheritSource) passwordSource() {}
func (InheritSource) String() string  { return "inherit" }

type NoneSource struct{}

func (NoneSource) passwordSource() {}
func (NoneSource) String() string  { return "none" }

// SSHConfig is the SSH protocol-specific sub-record.
type SSHConfig struct {
	IdentityFile string `yaml:"identity_file,omitempty"`
	UseAgent     bool   `yaml:"use_agent,omitempty"`
	ProxyJump    string `yaml:"proxy_jump,omitempty"`
}

// RDPConfig is the RDP protocol-specific sub-record.
type RDPConfig struct {
	Domain               string `yaml:"domain,omitempty"`
	SecurityProtocol     string `yaml:"security_protocol,omitempty"` // Auto, NLA, TLS, RDP
	PerformanceMode      string `yaml:"performance_mode,omitempty"`  // Speed, Quality
	ShowDesktopWallpaper bool   `yaml:"show_desktop_wallpaper,omitempty"`
	AllowClipboard       bool   `yaml:"allow_clipboard,omitempty"`
	AllowDirectorySharing bool  `yaml:"allow_directory_sharing,omitempty"`
	SharedFolders        []string `yaml:"shared_folders,omitempty"`
}

// VNCConfig is the VNC protocol-specific sub-record.
type VNCConfig struct {
	ColorDepth int `yaml:"color_depth,omitempty"`
}

// SPICEConfig is the SPICE protocol-specific sub-record.
type SPICEConfig struct {
	TLSPort int `yaml:"tls_port,omitempty"`
}

// TelnetConfig is the Telnet protocol-specific sub-record.
type TelnetConfig struct{}

// SerialConfig is the Serial protocol-specific sub-record.
type SerialConfig struct {
	Device   string `yaml:"device,omitempty"`
	BaudRate int    `yaml:"baud_rate,omitempty"`
}

// KubernetesConfig is the Kubernetes-exec protocol-specific sub-record.
type KubernetesConfig struct {
	Context   string `yaml:"context,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
	Pod       string `yaml:"pod,omitempty"`
	Container string `yaml:"container,omitempty"`
}

// ZeroTrustConfig is the Zero-Trust-CLI protocol-specific sub-record.
type ZeroTrustConfig struct {
	Provider string `yaml:"provider,omitempty"` // e.g. "teleport", "boundary"
	Resource string `yaml:"resource,omitempty"`
}

// CustomProperty is a free-form key/value attached to a Connection.
type CustomProperty struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Connection is the unit of configuration described in spec §3.
type Connection struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Protocol Protocol `yaml:"protocol"`
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username,omitempty"`

	GroupID *string `yaml:"group_id,omitempty"`
	// Domain is the optional credential domain referenced by C1's
	// resolution algorithm (spec §4.1 step 1: "Expand any ${var} in
	// connection.username and connection.domain via C3"); it is distinct
	// from RDPConfig.Domain, which is an RDP-session display setting.
	Domain string `yaml:"domain,omitempty"`

	PasswordSource PasswordSource `yaml:"-"`

	SSH        *SSHConfig        `yaml:"ssh,omitempty"`
	RDP        *RDPConfig        `yaml:"rdp,omitempty"`
	VNC        *VNCConfig        `yaml:"vnc,omitempty"`
	SPICE      *SPICEConfig      `yaml:"spice,omitempty"`
	Telnet     *TelnetConfig     `yaml:"telnet,omitempty"`
	Serial     *SerialConfig     `yaml:"serial,omitempty"`
	Kubernetes *KubernetesConfig `yaml:"kubernetes,omitempty"`
	ZeroTrust  *ZeroTrustConfig  `yaml:"zerotrust,omitempty"`

	WakeOnLANMac  *MACAddress       `yaml:"wol_mac,omitempty"`
	TemplateRef   *string           `yaml:"template_ref,omitempty"`
	LocalVars     map[string]Variable `yaml:"local_vars,omitempty"`
	CustomProperties []CustomProperty `yaml:"custom_properties,omitempty"`
	CustomArgs    []string          `yaml:"custom_args,omitempty"`
	CustomArgsRaw string            `yaml:"custom_args_raw,omitempty"`
	JumpHostID    *string           `yaml:"jump_host_id,omitempty"`
}

// DisplayKey returns the flat-key backends' lookup key: "{name} ({protocol})".
func (c *Connection) DisplayKey() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.Protocol)
}

// Validate checks the invariants of spec §3 that do not require the group
// tree (use ValidateForest for the cross-record invariant).
func (c *Connection) Validate() error {
	if c.Name == "" {
		return trace.BadParameter("connection name must not be empty")
	}
	if err := c.Protocol.Validate(); err != nil {
		return trace.Wrap(err)
	}
	if c.Port < 1 || c.Port > 65535 {
		return trace.BadParameter("port %d out of range [1, 65535]", c.Port)
	}
	return nil
}

var variableNameRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Variable is a name/value pair, optionally secret (spec §3).
type Variable struct {
	Name        string `yaml:"name"`
	Value       string `yaml:"value,omitempty"`
	IsSecret    bool   `yaml:"is_secret,omitempty"`
	Description string `yaml:"description,omitempty"`
	// SecretRef holds the backend key under which a secret variable's
	// value is stored; it is what gets persisted instead of Value when
	// IsSecret is true (spec §3: "secret values are never persisted in
	// plaintext").
	SecretRef string `yaml:"secret_ref,omitempty"`
}

// MarshalYAML omits Value when IsSecret is true, so a secret variable is
// persisted by SecretRef only.
func (v Variable) MarshalYAML() (interface{}, error) {
	type plain Variable
	out := plain(v)
	if out.IsSecret {
		out.Value = ""
	}
	return out, nil
}

// NewVariable validates name against spec §3's identifier grammar.
func NewVariable(name, value string, isSecret bool) (Variable, error) {
	if !variableNameRE.MatchString(name) {
		return Variable{}, trace.BadParameter("invalid variable name %q", name)
	}
	return Variable{Name: name, Value: value, IsSecret: isSecret}, nil
}
