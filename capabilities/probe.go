// Package capabilities probes hardware crypto acceleration at startup so
// the daemon can log a recommended default AEAD. Nothing here changes
// which algorithm is used; cipher.Suite does not consult it.
package capabilities

import "golang.org/x/sys/cpu"

// Report is a snapshot of the CPU features nalixcore cares about.
type Report struct {
	HasAESNI bool
	HasAVX2  bool
}

// Probe reads golang.org/x/sys/cpu's feature flags for the running
// architecture.
func Probe() Report {
	return Report{
		HasAESNI: cpu.X86.HasAES || cpu.ARM64.HasAES,
		HasAVX2:  cpu.X86.HasAVX2,
	}
}

// RecommendedAlgorithmName returns a human-readable default AEAD
// recommendation for logging; cipher.Suite callers still choose
// explicitly, this is advisory only (capabilities.Probe never changes
// behavior on its own per SPEC_FULL.md §4.18).
func (r Report) RecommendedAlgorithmName() string {
	if r.HasAESNI {
		return "AES-GCM"
	}
	return "ChaCha20-Poly1305"
}
