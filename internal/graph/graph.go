// Package graph builds the queryable store of content items and their
// cross-item relationships. The engine depends only on the Backend query
// surface; the in-memory implementation indexes by (type, id), pack and
// cliName, which is sufficient for repositories of a few hundred thousand
// items.
package graph

import (
	"github.com/contentops/packlint/internal/content"
)

// RelationKind is the kind of a directed relationship edge.
type RelationKind string

const (
	RelUses       RelationKind = "USES"
	RelInPack     RelationKind = "IN_PACK"
	RelHasCommand RelationKind = "HAS_COMMAND"
	RelTestedBy   RelationKind = "TESTED_BY"
	RelDependsOn  RelationKind = "DEPENDS_ON"
)

// TargetRef addresses the target of a relationship before resolution.
type TargetRef struct {
	// Type constrains resolution; empty means any type matching the lookup kind.
	Type content.ContentType
	// ID is an object id, name, command name or field cliName depending on Lookup.
	ID string
	// Lookup selects the resolution index.
	Lookup LookupKind
}

// LookupKind selects which index resolves a target reference.
type LookupKind string

const (
	LookupID      LookupKind = "id"
	LookupName    LookupKind = "name"
	LookupCommand LookupKind = "command"
	LookupCliName LookupKind = "cliname"
	LookupPack    LookupKind = "pack"
)

// Relationship is a directed edge mined from an item's body.
type Relationship struct {
	Source    *content.ContentItem
	Kind      RelationKind
	Mandatory bool
	Ref       TargetRef
	// Target is the resolved item; nil when the reference is unknown.
	Target *content.ContentItem
	// TargetPack is set for DEPENDS_ON edges.
	TargetPack *content.Pack
}

// MarketplaceViolation is a mandatory USES edge crossing into marketplaces the
// target does not serve.
type MarketplaceViolation struct {
	Source  *content.ContentItem
	Target  *content.ContentItem
	Missing []content.Marketplace
}

// VersionViolation is a USES edge whose target appears later than the source.
type VersionViolation struct {
	Source *content.ContentItem
	Target *content.ContentItem
}

// UnknownUse is a USES edge with no resolvable target.
type UnknownUse struct {
	Source *content.ContentItem
	Ref    TargetRef
}

// DuplicateID groups items sharing a (content type, object id) pair; First is
// the canonical occurrence, Duplicates the rest in path order.
type DuplicateID struct {
	First      *content.ContentItem
	Duplicates []*content.ContentItem
}

// DeprecatedUse is a USES edge whose target is deprecated.
type DeprecatedUse struct {
	Source *content.ContentItem
	Target *content.ContentItem
}

// ModuleMismatch is a dependency whose supported modules do not cover the
// source's.
type ModuleMismatch struct {
	Source     *content.ContentItem
	Target     *content.ContentItem // nil for pack-level dependencies
	TargetPack *content.Pack        // set for pack-level dependencies
	Missing    []string
}

// SearchOptions filters Search. Zero-valued fields do not constrain.
type SearchOptions struct {
	Type         content.ContentType
	ObjectID     string
	Name         string
	Marketplaces []content.Marketplace
	Path         string
}

// Backend is the query surface the engine and graph-dependent validators use.
// Any store satisfying these contracts is acceptable; the engine assumes no
// sub-linear cost beyond per-validator batching.
type Backend interface {
	Search(opts SearchOptions) []*content.ContentItem
	FindUsesWithInvalidMarketplaces(packIDs []string) []MarketplaceViolation
	FindUsesWithInvalidFromVersion(paths []string) []VersionViolation
	UnknownContentUses(paths []string) []UnknownUse
	ValidateDuplicateIDs(paths []string) []DuplicateID
	TestPlaybookWithoutUses(name string) bool
	FindItemsUsingDeprecatedItems(paths []string) []DeprecatedUse
	FindModuleMismatchDependencies(paths []string) []ModuleMismatch
	FindModuleMismatchCommands(paths []string) []ModuleMismatch
	FindModuleMismatchContentItems(paths []string) []ModuleMismatch
	FindInvalidContentItemDependencies(ids []string) []*content.ContentItem
	// UsesOf exposes an item's outgoing USES edges for lazy materialization.
	UsesOf(item *content.ContentItem) []Relationship
	// UsedBy exposes an item's incoming USES edges.
	UsedBy(item *content.ContentItem) []Relationship
}
