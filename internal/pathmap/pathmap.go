// Package pathmap converts between physical vault addressing and the
// domain-scoped canonical path space used by the shared knowledge bridge.
// All functions are pure: no I/O, no global state.
package pathmap

import (
	"errors"
	"fmt"
	"strings"
)

// VaultID identifies one physical storage backend. The set is closed;
// vaults are never created or destroyed at runtime.
type VaultID string

const (
	VaultOrg          VaultID = "org"
	VaultShip         VaultID = "ship"
	VaultAgentPublic  VaultID = "agent-public"
	VaultAgentPrivate VaultID = "agent-private"

	// VaultJoined is a request-time view composing every physical vault
	// under the <vault-id>:<inner-path> joined-path convention. Nothing
	// is physically stored under it.
	VaultJoined VaultID = "joined"
)

// Domain is a shared-bridge storage partition. Three of the four
// physical vaults are bridge-backed; agent-private is purely local.
type Domain string

const (
	DomainOrg         Domain = "org"
	DomainShip        Domain = "ship"
	DomainAgentPublic Domain = "agent-public"
)

// Domains lists every bridge-backed domain.
var Domains = []Domain{DomainOrg, DomainShip, DomainAgentPublic}

// Ship-domain physical path prefixes. kb/ships/<shipId>/... addresses a
// specific ship deployment, kb/fleet/... addresses the shared fleet space.
const (
	shipPrefix  = "kb/ships/"
	fleetPrefix = "kb/fleet/"

	// FleetNamespace is the ship-domain namespace for fleet-wide documents,
	// and the fallback namespace when no ship context is supplied.
	FleetNamespace = "fleet"

	// AnonymousNamespace is the agent-public namespace used when the
	// caller context carries no user ID.
	AnonymousNamespace = "anonymous"
)

var (
	ErrEmptyPath      = errors.New("empty note path")
	ErrPathTraversal  = errors.New("path traversal segment rejected")
	ErrNotShared      = errors.New("vault is not bridge-backed")
	ErrUnknownVault   = errors.New("unknown vault")
	ErrDomainMismatch = errors.New("canonical path does not belong to domain")
	ErrMalformedPath  = errors.New("malformed canonical path")
)

// DomainFor returns the bridge domain backing a physical vault.
// The agent-private vault has no domain.
func DomainFor(vault VaultID) (Domain, error) {
	switch vault {
	case VaultOrg:
		return DomainOrg, nil
	case VaultShip:
		return DomainShip, nil
	case VaultAgentPublic:
		return DomainAgentPublic, nil
	case VaultAgentPrivate:
		return "", fmt.Errorf("%w: %s", ErrNotShared, vault)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownVault, vault)
	}
}

// VaultFor returns the physical vault that a domain projects onto.
func VaultFor(domain Domain) VaultID {
	switch domain {
	case DomainOrg:
		return VaultOrg
	case DomainShip:
		return VaultShip
	default:
		return VaultAgentPublic
	}
}

// KnownVault reports whether id names a physical vault (not the joined view).
func KnownVault(id VaultID) bool {
	switch id {
	case VaultOrg, VaultShip, VaultAgentPublic, VaultAgentPrivate:
		return true
	}
	return false
}

// Context carries the caller identity used to pick namespaces during
// canonical mapping.
type Context struct {
	UserID           string
	ShipDeploymentID string
	ClusterID        string
}

// NormalizePath is the single normalization gate every physical path
// passes through before it can become part of a canonical path.
// It trims whitespace, converts backslashes, strips leading slashes,
// drops empty segments, rejects "." and ".." segments, and forces a
// ".md" suffix.
func NormalizePath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return "", ErrEmptyPath
	}

	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrPathTraversal, raw)
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return "", ErrEmptyPath
	}

	out := strings.Join(segments, "/")
	if !strings.HasSuffix(strings.ToLower(out), ".md") {
		out += ".md"
	}
	return out, nil
}

// CanonicalRef is a fully qualified canonical address:
// <domain>/<namespace>/<relative-path>.md.
type CanonicalRef struct {
	Domain        Domain
	CanonicalPath string
}

// ToCanonicalPath maps a physical vault path into canonical space.
// Namespace selection per domain:
//
//	org          -> the deployment cluster ID from the context
//	ship         -> kb/ships/<id>/... and kb/fleet/... prefixes map to the
//	                <id> and "fleet" namespaces; anything else falls back to
//	                the context's ship deployment (or "fleet" when absent)
//	agent-public -> the context's user ID (or "anonymous")
func ToCanonicalPath(vault VaultID, physicalPath string, ctx Context) (CanonicalRef, error) {
	domain, err := DomainFor(vault)
	if err != nil {
		return CanonicalRef{}, err
	}
	normalized, err := NormalizePath(physicalPath)
	if err != nil {
		return CanonicalRef{}, err
	}

	var canonical string
	switch domain {
	case DomainOrg:
		cluster := ctx.ClusterID
		if cluster == "" {
			cluster = "default"
		}
		canonical = string(domain) + "/" + cluster + "/" + normalized

	case DomainShip:
		switch {
		case strings.HasPrefix(normalized, shipPrefix):
			rest := strings.TrimPrefix(normalized, shipPrefix)
			shipID, tail, ok := strings.Cut(rest, "/")
			if !ok || shipID == "" || tail == "" {
				return CanonicalRef{}, fmt.Errorf("%w: %q", ErrMalformedPath, physicalPath)
			}
			canonical = string(domain) + "/" + shipID + "/" + tail
		case strings.HasPrefix(normalized, fleetPrefix):
			canonical = string(domain) + "/" + FleetNamespace + "/" + strings.TrimPrefix(normalized, fleetPrefix)
		default:
			ns := ctx.ShipDeploymentID
			if ns == "" {
				ns = FleetNamespace
			}
			canonical = string(domain) + "/" + ns + "/" + normalized
		}

	case DomainAgentPublic:
		ns := ctx.UserID
		if ns == "" {
			ns = AnonymousNamespace
		}
		canonical = string(domain) + "/" + ns + "/" + normalized
	}

	return CanonicalRef{Domain: domain, CanonicalPath: canonical}, nil
}

// FromCanonicalPath inverts ToCanonicalPath. For the agent-public domain a
// namespace matching the caller's own user ID is stripped; any other
// namespace stays as a <namespace>/<rest> qualifier so documents written by
// a different user remain disambiguated when read back.
func FromCanonicalPath(domain Domain, canonicalPath string, ctx Context) (string, error) {
	segments := strings.Split(strings.Trim(canonicalPath, "/"), "/")
	if len(segments) < 3 {
		return "", fmt.Errorf("%w: %q", ErrMalformedPath, canonicalPath)
	}
	if segments[0] != string(domain) {
		return "", fmt.Errorf("%w: %q is not in %s", ErrDomainMismatch, canonicalPath, domain)
	}
	namespace := segments[1]
	rest := strings.Join(segments[2:], "/")

	switch domain {
	case DomainOrg:
		return rest, nil

	case DomainShip:
		if namespace == FleetNamespace {
			return fleetPrefix + rest, nil
		}
		return shipPrefix + namespace + "/" + rest, nil

	case DomainAgentPublic:
		self := ctx.UserID
		if self == "" {
			self = AnonymousNamespace
		}
		if namespace == self {
			return rest, nil
		}
		return namespace + "/" + rest, nil
	}
	return "", fmt.Errorf("%w: %q", ErrDomainMismatch, canonicalPath)
}

// ScopeType classifies where in the fleet hierarchy a document lives.
type ScopeType string

const (
	ScopeShip   ScopeType = "ship"
	ScopeFleet  ScopeType = "fleet"
	ScopeGlobal ScopeType = "global"
)

// ClassifyCanonical infers a scope from canonical path structure alone.
// Ship-domain paths are ship- or fleet-scoped depending on their namespace;
// every other domain is global. Any canonical-path-format change must keep
// this inference in sync.
func ClassifyCanonical(canonicalPath string) (ScopeType, string) {
	segments := strings.SplitN(strings.Trim(canonicalPath, "/"), "/", 3)
	if len(segments) < 2 || segments[0] != string(DomainShip) {
		return ScopeGlobal, ""
	}
	if segments[1] == FleetNamespace {
		return ScopeFleet, ""
	}
	return ScopeShip, segments[1]
}
