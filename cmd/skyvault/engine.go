package main

import (
	"github.com/skyvault/skyvault/pkg/access"
	"github.com/skyvault/skyvault/pkg/blob"
	"github.com/skyvault/skyvault/pkg/config"
	"github.com/skyvault/skyvault/pkg/files"
	"github.com/skyvault/skyvault/pkg/quota"
	"github.com/skyvault/skyvault/pkg/sharelink"
	"github.com/skyvault/skyvault/pkg/store"
	"github.com/skyvault/skyvault/pkg/trash"
	"github.com/skyvault/skyvault/pkg/versions"
)

// Engine bundles the fully wired service layer. API adapters embed or
// receive this struct instead of wiring the collaborators themselves.
type Engine struct {
	Resolver *access.Resolver
	Ledger   *quota.Ledger
	Versions *versions.Engine
	Files    *files.Service
	Links    *sharelink.Engine
	Trash    *trash.Service
}

// NewEngine wires every service over the given stores.
func NewEngine(metadata store.MetadataStore, blobs blob.BlobStore, cfg *config.Config) *Engine {
	resolver := access.NewResolver(metadata)
	ledger := quota.NewLedger(metadata, cfg.Plans.Catalog())
	versionEngine := versions.NewEngine(metadata, blobs, ledger)

	return &Engine{
		Resolver: resolver,
		Ledger:   ledger,
		Versions: versionEngine,
		Files:    files.NewService(metadata, blobs, resolver, ledger, versionEngine),
		Links:    sharelink.NewEngine(metadata, blobs),
		Trash:    trash.NewService(metadata, blobs, cfg.Trash.Retention()),
	}
}
