package pathmap

import (
	"fmt"
	"strings"
)

// JoinedPath builds a joined-vault address from a physical vault and an
// inner path: <vault-id>:<inner-path>.
func JoinedPath(vault VaultID, inner string) string {
	return string(vault) + ":" + inner
}

// SplitJoinedPath parses a joined-vault address back into its physical
// vault and inner path.
func SplitJoinedPath(joined string) (VaultID, string, error) {
	vaultPart, inner, ok := strings.Cut(joined, ":")
	if !ok || vaultPart == "" || inner == "" {
		return "", "", fmt.Errorf("%w: joined path %q", ErrMalformedPath, joined)
	}
	vault := VaultID(vaultPart)
	if !KnownVault(vault) {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownVault, vault)
	}
	return vault, inner, nil
}

// PhysicalTarget is the resolved destination of a vault request: the real
// physical vault plus the path inside it.
type PhysicalTarget struct {
	Vault VaultID
	Path  string
}

// ResolvePhysicalTarget recovers the physical vault and inner path for a
// request. Joined-vault requests are parsed through the joined-path
// convention; direct requests keep their own vault and normalize the path.
// The private vault keeps raw (non-.md-forced) inner paths for joined
// requests since its storage layout is not canonical-path shaped, so callers
// normalize at the canonical boundary instead.
func ResolvePhysicalTarget(vault VaultID, notePath string) (PhysicalTarget, error) {
	if vault == VaultJoined {
		inner := strings.TrimSpace(notePath)
		physical, innerPath, err := SplitJoinedPath(inner)
		if err != nil {
			return PhysicalTarget{}, err
		}
		return PhysicalTarget{Vault: physical, Path: innerPath}, nil
	}
	if !KnownVault(vault) {
		return PhysicalTarget{}, fmt.Errorf("%w: %s", ErrUnknownVault, vault)
	}
	normalized, err := NormalizePath(notePath)
	if err != nil {
		return PhysicalTarget{}, err
	}
	return PhysicalTarget{Vault: vault, Path: normalized}, nil
}
