// Package randmac generates random MAC addresses in the libvirt/QEMU
// locally-administered range, topping up interface MAC lists per spec §3's
// invariant: "any shortfall is filled by random MACs with prefix 52:54:00".
package randmac

import (
	"crypto/rand"
	"fmt"
)

// Prefix is the organizationally-unique identifier QEMU/libvirt reserves
// for locally-administered guest MACs.
const Prefix = "52:54:00"

// New generates a random MAC address of the form 52:54:00:xx:xx:xx.
func New() (string, error) {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed generating random MAC octets: %w", err)
	}
	return fmt.Sprintf("%s:%02x:%02x:%02x", Prefix, buf[0], buf[1], buf[2]), nil
}

// TopUp returns existing extended to length n, generating new 52:54:00
// MACs for any shortfall. The first len(existing) entries (up to n) are
// preserved verbatim, per spec §3/§4.2.
func TopUp(existing []string, n int) ([]string, error) {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i < len(existing) {
			out = append(out, existing[i])
			continue
		}
		mac, err := New()
		if err != nil {
			return nil, err
		}
		out = append(out, mac)
	}
	return out, nil
}
