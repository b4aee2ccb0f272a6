package vpn

import (
	"fmt"
	"regexp"
	"strings"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

var (
	interfaceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	addressEntryPattern  = regexp.MustCompile(`^[a-fA-F0-9.:]+/\d+$`)
	dnsEntryPattern      = regexp.MustCompile(`^[a-zA-Z0-9.\-:]+$`)
	peerNamePattern      = regexp.MustCompile(`^[a-zA-Z0-9_\- ]+$`)
	iptablesPattern      = regexp.MustCompile(`^ip6?tables\s+-[A-Z]\s+\w+`)
)

// reservedNames cannot be interface names; the kernel or tooling treats
// them specially.
var reservedNames = map[string]struct{}{
	"all":       {},
	"default":   {},
	"lo":        {},
	"localhost": {},
}

// dangerousFragments are rejected in PostUp/PostDown commands regardless of
// whether custom scripts are enabled.
var dangerousFragments = []string{";", "&&", "||", "|", "`", "$", "$(", "curl", "wget", "nc", "bash", "sh"}

// ValidateInterfaceName rejects names that are unsafe as file names or
// interface identifiers. The charset rules out path traversal; the length
// cap is the kernel's 15-character interface name limit.
func ValidateInterfaceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: interface name is required", ErrValidation)
	}
	if !interfaceNamePattern.MatchString(name) {
		return fmt.Errorf("%w: interface name may only contain letters, digits, '_' and '-'", ErrValidation)
	}
	if len(name) > 15 {
		return fmt.Errorf("%w: interface name must be 15 characters or fewer", ErrValidation)
	}
	if _, ok := reservedNames[strings.ToLower(name)]; ok {
		return fmt.Errorf("%w: interface name %q is reserved", ErrValidation, name)
	}
	return nil
}

// ValidateAddress checks a comma-separated list of CIDR entries, IPv4 or
// IPv6. The charset also keeps newlines and shell metacharacters out of the
// config file.
func ValidateAddress(address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("%w: address is required", ErrValidation)
	}
	for _, entry := range strings.Split(address, ",") {
		entry = strings.TrimSpace(entry)
		if !addressEntryPattern.MatchString(entry) {
			return fmt.Errorf("%w: invalid address %q, expected CIDR like 10.0.0.1/24", ErrValidation, entry)
		}
	}
	return nil
}

// ValidateListenPort checks a UDP port number.
func ValidateListenPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: listen port must be between 1 and 65535", ErrValidation)
	}
	return nil
}

// ValidateDNS checks a comma-separated list of DNS servers. Both IP
// literals and hostnames are accepted; empty means no DNS line.
func ValidateDNS(dns string) error {
	if dns == "" {
		return nil
	}
	for _, entry := range strings.Split(dns, ",") {
		entry = strings.TrimSpace(entry)
		if !dnsEntryPattern.MatchString(entry) {
			return fmt.Errorf("%w: invalid DNS entry %q", ErrValidation, entry)
		}
	}
	return nil
}

// ValidatePostCommand checks a PostUp/PostDown command. Unless custom
// scripts are enabled, only plain iptables/ip6tables rules are accepted;
// fragments that smell like shell injection are rejected either way.
func ValidatePostCommand(command string, allowCustom bool) error {
	if command == "" {
		return nil
	}
	if !allowCustom && !iptablesPattern.MatchString(command) {
		return fmt.Errorf("%w: custom PostUp/PostDown commands are disabled, only iptables rules are allowed", ErrValidation)
	}
	for _, fragment := range dangerousFragments {
		if strings.Contains(command, fragment) {
			return fmt.Errorf("%w: PostUp/PostDown command contains blocked fragment %q", ErrValidation, fragment)
		}
	}
	return nil
}

// ValidatePeerName checks a peer display name.
func ValidatePeerName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: peer name is required", ErrValidation)
	}
	if !peerNamePattern.MatchString(name) {
		return fmt.Errorf("%w: peer name may only contain letters, digits, spaces, '_' and '-'", ErrValidation)
	}
	if len(name) > 64 {
		return fmt.Errorf("%w: peer name must be 64 characters or fewer", ErrValidation)
	}
	return nil
}

// ValidateKeepalive checks a persistent keepalive interval in seconds.
func ValidateKeepalive(seconds int) error {
	if seconds < 0 || seconds > 65535 {
		return fmt.Errorf("%w: persistent keepalive must be between 0 and 65535", ErrValidation)
	}
	return nil
}

// ValidateKey checks a WireGuard key in its base64 form.
func ValidateKey(key string) error {
	if _, err := wgtypes.ParseKey(key); err != nil {
		return fmt.Errorf("%w: invalid key: %v", ErrValidation, err)
	}
	return nil
}
